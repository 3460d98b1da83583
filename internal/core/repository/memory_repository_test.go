package repository

import (
	"context"
	"testing"
	"time"

	"familytrack/internal/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLocationHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryLocationRepository()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, model.NewLocationSample("u1", 37.5, 127.0, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Create(ctx, model.NewLocationSample("u2", 1, 1, base)))

	tests := []struct {
		name  string
		query HistoryQuery
		want  []time.Time
	}{
		{
			name:  "all newest first",
			query: HistoryQuery{},
			want: []time.Time{
				base.Add(4 * time.Minute), base.Add(3 * time.Minute), base.Add(2 * time.Minute),
				base.Add(time.Minute), base,
			},
		},
		{
			name:  "closed range",
			query: HistoryQuery{From: base.Add(time.Minute), To: base.Add(3 * time.Minute)},
			want:  []time.Time{base.Add(3 * time.Minute), base.Add(2 * time.Minute), base.Add(time.Minute)},
		},
		{
			name:  "limit",
			query: HistoryQuery{Limit: 2},
			want:  []time.Time{base.Add(4 * time.Minute), base.Add(3 * time.Minute)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindByUserID(ctx, "u1", tt.query)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i, s := range got {
				assert.Equal(t, tt.want[i], s.Timestamp)
			}
		})
	}

	latest, err := repo.FindLatestByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, base.Add(4*time.Minute), latest.Timestamp)

	none, err := repo.FindLatestByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestInMemoryLocationDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryLocationRepository()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	keep := model.NewLocationSample("u1", 1, 1, base)
	drop := model.NewLocationSample("u1", 2, 2, base.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, keep))
	require.NoError(t, repo.Create(ctx, drop))

	require.NoError(t, repo.Delete(ctx, drop.ID))
	require.NoError(t, repo.Delete(ctx, "missing"))

	got, err := repo.FindByUserID(ctx, "u1", HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, keep.ID, got[0].ID)
}

func TestHistoryQueryEffectiveLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, HistoryQuery{}.EffectiveLimit())
	assert.Equal(t, 7, HistoryQuery{Limit: 7}.EffectiveLimit())
	assert.Equal(t, MaxHistoryLimit, HistoryQuery{Limit: 5000}.EffectiveLimit())
}

func TestInMemoryGeofenceActiveFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryGeofenceRepository()

	home := model.NewGeofence("parent", "home", 37.5, 127.0, 100, model.KindSafeZone)
	school := model.NewGeofence("parent", "school", 37.6, 127.1, 200, model.KindSafeZone)
	require.NoError(t, repo.Create(ctx, home))
	require.NoError(t, repo.Create(ctx, school))

	school.Active = false
	require.NoError(t, repo.Update(ctx, school))

	active, err := repo.FindActiveByOwner(ctx, "parent")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "home", active[0].Name)

	all, err := repo.FindByOwner(ctx, "parent")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	missing := model.NewGeofence("parent", "ghost", 0, 0, 10, model.KindAlertZone)
	assert.ErrorIs(t, repo.Update(ctx, missing), ErrNotFound)
}

func TestInMemoryGeofenceAlertPaging(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAlertRepository()
	fence := model.NewGeofence("parent", "home", 37.5, 127.0, 100, model.KindSafeZone)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		pos := model.CachedPosition{UserID: "child", Latitude: 37.5, Longitude: 127.0, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, repo.CreateGeofenceAlert(ctx, model.NewGeofenceAlert(fence, "child", model.TransitionEntered, pos)))
	}

	page1, err := repo.FindGeofenceAlertsByOwner(ctx, "parent", 3, 0)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	assert.Equal(t, base.Add(3*time.Minute), page1[0].TriggeredAt)

	page2, err := repo.FindGeofenceAlertsByOwner(ctx, "parent", 3, 3)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, base, page2[0].TriggeredAt)

	empty, err := repo.FindGeofenceAlertsByOwner(ctx, "stranger", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
