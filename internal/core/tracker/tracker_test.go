package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"familytrack/internal/cache"
	"familytrack/internal/core/geo"
	"familytrack/internal/core/model"
	"familytrack/internal/core/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	clock     *fakeClock
	store     *cache.MemoryStore
	alerts    *repository.InMemoryAlertRepository
	positions *PositionCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newFakeClock()
	store := cache.NewMemoryStore(clock.Now)
	t.Cleanup(func() { store.Close() })
	return &fixture{
		clock:     clock,
		store:     store,
		alerts:    repository.NewInMemoryAlertRepository(),
		positions: NewPositionCache(store, DefaultOptions(), clock.Now),
	}
}

var home = geo.Point{Lat: 37.5665, Lng: 126.9780}

func position(userID string, p geo.Point, ts time.Time) model.CachedPosition {
	return model.CachedPosition{UserID: userID, Latitude: p.Lat, Longitude: p.Lng, Timestamp: ts}
}

func homeFence() *model.Geofence {
	return model.NewGeofence("parent", "Home", home.Lat, home.Lng, 200, model.KindSafeZone)
}

func TestPositionCachePutAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ts := f.clock.Now()

	stored, err := f.positions.Put(ctx, position("u1", home, ts))
	require.NoError(t, err)
	assert.True(t, stored)

	got, err := f.positions.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.InDelta(t, home.Lat, got.Latitude, 1e-9)
	assert.True(t, got.Timestamp.Equal(ts))

	_, err = f.positions.Get(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestPositionCacheRejectsOlderSample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t2 := f.clock.Now()
	t1 := t2.Add(-30 * time.Second)

	stored, err := f.positions.Put(ctx, position("u1", geo.Offset(home, 100, 0), t2))
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = f.positions.Put(ctx, position("u1", home, t1))
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := f.positions.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Timestamp.Equal(t2))
}

func TestPositionCacheCheckTimestamp(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	tests := []struct {
		name    string
		ts      time.Time
		wantErr bool
	}{
		{"past", now.Add(-time.Hour), false},
		{"now", now, false},
		{"at the skew limit", now.Add(time.Minute), false},
		{"just beyond", now.Add(time.Minute + time.Millisecond), true},
		{"a day ahead", now.Add(24 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.positions.CheckTimestamp(tt.ts)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrFromFuture)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	wide := NewPositionCache(f.store, Options{MaxClockSkew: time.Hour}, f.clock.Now)
	assert.NoError(t, wide.CheckTimestamp(now.Add(30*time.Minute)))
}

func TestPositionCacheFreshness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.positions.Put(ctx, position("u1", home, f.clock.Now()))
	require.NoError(t, err)

	f.clock.Advance(299 * time.Second)
	_, err = f.positions.Get(ctx, "u1")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Second)
	_, err = f.positions.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrUnknown)

	// stale entries remain visible to enumeration
	all, err := f.positions.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "u1", all[0].UserID)
}

func TestPositionCacheConcurrentWritesConverge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := f.clock.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.positions.Put(ctx, position("u1", geo.Offset(home, float64(i), 0), base.Add(time.Duration(i)*time.Second)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := f.positions.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Timestamp.Equal(base.Add(49*time.Second)))
}

func TestMembershipTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tracker := NewMembershipTracker(f.store, DefaultOptions(), f.clock.Now)
	fence := homeFence()
	ts := f.clock.Now()

	steps := []struct {
		name  string
		point geo.Point
		want  model.Transition
	}{
		{"first sample outside", geo.Offset(home, 0, 500), model.TransitionUnchanged},
		{"still outside", geo.Offset(home, 0, 450), model.TransitionUnchanged},
		{"crosses in", geo.Offset(home, 0, 150), model.TransitionEntered},
		{"stays inside", geo.Offset(home, 0, 100), model.TransitionUnchanged},
		{"on the boundary", geo.Offset(home, 0, 195), model.TransitionUnchanged},
		{"crosses out", geo.Offset(home, 0, 250), model.TransitionExited},
		{"stays outside", geo.Offset(home, 0, 300), model.TransitionUnchanged},
	}

	for i, step := range steps {
		got, err := tracker.Evaluate(ctx, "child", position("child", step.point, ts.Add(time.Duration(i)*time.Second)), fence)
		require.NoError(t, err, step.name)
		assert.Equal(t, step.want, got, step.name)
	}
}

func TestMembershipUnknownNeverExits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tracker := NewMembershipTracker(f.store, DefaultOptions(), f.clock.Now)
	fence := homeFence()

	got, err := tracker.Evaluate(ctx, "child", position("child", home, f.clock.Now()), fence)
	require.NoError(t, err)
	assert.Equal(t, model.TransitionEntered, got)

	// record expires, then the user shows up outside
	f.clock.Advance(time.Hour + time.Second)
	got, err = tracker.Evaluate(ctx, "child", position("child", geo.Offset(home, 0, 500), f.clock.Now()), fence)
	require.NoError(t, err)
	assert.Equal(t, model.TransitionUnchanged, got)
}

func TestMembershipRespectsAlertFlags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tracker := NewMembershipTracker(f.store, DefaultOptions(), f.clock.Now)
	fence := homeFence()
	fence.AlertOnEnter = false
	ts := f.clock.Now()

	got, err := tracker.Evaluate(ctx, "child", position("child", home, ts), fence)
	require.NoError(t, err)
	assert.Equal(t, model.TransitionUnchanged, got)

	got, err = tracker.Evaluate(ctx, "child", position("child", geo.Offset(home, 300, 0), ts.Add(time.Second)), fence)
	require.NoError(t, err)
	assert.Equal(t, model.TransitionExited, got)

	got, err = tracker.Evaluate(ctx, "child", position("child", home, ts.Add(2*time.Second)), fence)
	require.NoError(t, err)
	assert.Equal(t, model.TransitionUnchanged, got)
}

func TestMembershipIgnoresOlderSample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tracker := NewMembershipTracker(f.store, DefaultOptions(), f.clock.Now)
	fence := homeFence()
	ts := f.clock.Now()

	_, err := tracker.Evaluate(ctx, "child", position("child", home, ts), fence)
	require.NoError(t, err)

	got, err := tracker.Evaluate(ctx, "child", position("child", geo.Offset(home, 500, 0), ts.Add(-time.Minute)), fence)
	require.NoError(t, err)
	assert.Equal(t, model.TransitionUnchanged, got)

	// the recorded state is still inside
	got, err = tracker.Evaluate(ctx, "child", position("child", geo.Offset(home, 500, 0), ts.Add(time.Second)), fence)
	require.NoError(t, err)
	assert.Equal(t, model.TransitionExited, got)
}

func family(ids ...string) []*model.FamilyMember {
	members := make([]*model.FamilyMember, 0, len(ids))
	for _, id := range ids {
		members = append(members, &model.FamilyMember{UserID: id, FamilyID: "fam"})
	}
	return members
}

func TestProximityCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detector := NewProximityDetector(f.positions, f.store, DefaultOptions(), f.clock.Now)
	ts := f.clock.Now()

	_, err := f.positions.Put(ctx, position("b", home, ts))
	require.NoError(t, err)
	_, err = f.positions.Put(ctx, position("c", geo.Offset(home, 500, 0), ts))
	require.NoError(t, err)

	a := position("a", geo.Offset(home, 0, 60), ts)
	events, err := detector.Check(ctx, "a", a, family("a", "b", "c", "d"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].UserID)
	assert.Equal(t, "b", events[0].OtherUserID)
	assert.InDelta(t, 60, events[0].DistanceMeters, 0.5)

	// without debounce every update in range reports again
	events, err = detector.Check(ctx, "a", a, family("a", "b", "c"))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestProximitySkipsStaleMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detector := NewProximityDetector(f.positions, f.store, DefaultOptions(), f.clock.Now)

	_, err := f.positions.Put(ctx, position("b", home, f.clock.Now()))
	require.NoError(t, err)
	f.clock.Advance(6 * time.Minute)

	events, err := detector.Check(ctx, "a", position("a", home, f.clock.Now()), family("a", "b"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestProximityDebounce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	opts := DefaultOptions()
	opts.ProximityDebounce = true
	detector := NewProximityDetector(f.positions, f.store, opts, f.clock.Now)
	ts := f.clock.Now()

	_, err := f.positions.Put(ctx, position("b", home, ts))
	require.NoError(t, err)

	near := position("a", geo.Offset(home, 50, 0), ts)
	far := position("a", geo.Offset(home, 400, 0), ts)

	events, err := detector.Check(ctx, "a", near, family("a", "b"))
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = detector.Check(ctx, "a", near, family("a", "b"))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = detector.Check(ctx, "a", far, family("a", "b"))
	require.NoError(t, err)
	assert.Empty(t, events)

	// the pair key is symmetric
	_, err = f.positions.Put(ctx, position("a", geo.Offset(home, 50, 0), ts))
	require.NoError(t, err)
	events, err = detector.Check(ctx, "b", position("b", home, ts), family("a", "b"))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSpeedDetector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detector := NewSpeedDetector(f.store, f.alerts, DefaultOptions())
	t0 := f.clock.Now()

	first := model.NewLocationSample("u1", home.Lat, home.Lng, t0)
	alert, err := detector.Check(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, alert)

	// 1000 m in 10 s is 100 m/s
	fast := geo.Offset(home, 1000, 0)
	second := model.NewLocationSample("u1", fast.Lat, fast.Lng, t0.Add(10*time.Second))
	alert, err = detector.Check(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.InDelta(t, 100, alert.SpeedMps, 0.5)
	assert.Len(t, f.alerts.SpeedAlerts(), 1)

	// 100 m in 10 s is under the threshold
	slow := geo.Offset(fast, 100, 0)
	third := model.NewLocationSample("u1", slow.Lat, slow.Lng, t0.Add(20*time.Second))
	alert, err = detector.Check(ctx, third)
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Len(t, f.alerts.SpeedAlerts(), 1)
}

func TestSpeedDetectorNonPositiveInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detector := NewSpeedDetector(f.store, f.alerts, DefaultOptions())
	t0 := f.clock.Now()

	_, err := detector.Check(ctx, model.NewLocationSample("u1", home.Lat, home.Lng, t0))
	require.NoError(t, err)

	far := geo.Offset(home, 5000, 0)
	alert, err := detector.Check(ctx, model.NewLocationSample("u1", far.Lat, far.Lng, t0))
	require.NoError(t, err)
	assert.Nil(t, alert)

	alert, err = detector.Check(ctx, model.NewLocationSample("u1", far.Lat, far.Lng, t0.Add(-5*time.Second)))
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Empty(t, f.alerts.SpeedAlerts())
}

func TestSweeperAlertsOncePerEpisode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sweeper := NewSweeper(f.positions, f.store, f.alerts, DefaultOptions(), f.clock.Now)

	var notified []*model.InactivityAlert
	sweeper.OnAlert(func(_ context.Context, a *model.InactivityAlert) {
		notified = append(notified, a)
	})

	lastSeen := f.clock.Now()
	_, err := f.positions.Put(ctx, position("u1", home, lastSeen))
	require.NoError(t, err)

	f.clock.Advance(9 * time.Minute)
	raised, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, raised)

	f.clock.Advance(2 * time.Minute)
	raised, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, "u1", raised[0].UserID)
	assert.True(t, raised[0].LastSeenAt.Equal(lastSeen))

	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Minute)
		raised, err = sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Empty(t, raised)
	}
	assert.Len(t, f.alerts.InactivityAlerts(), 1)
	assert.Len(t, notified, 1)

	// a new sample starts a new episode
	_, err = f.positions.Put(ctx, position("u1", home, f.clock.Now()))
	require.NoError(t, err)
	raised, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, raised)

	f.clock.Advance(11 * time.Minute)
	raised, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Len(t, raised, 1)
	assert.Len(t, f.alerts.InactivityAlerts(), 2)
}

func TestSweeperRunStopsWithContext(t *testing.T) {
	f := newFixture(t)
	opts := DefaultOptions()
	opts.SweepInterval = time.Millisecond
	sweeper := NewSweeper(f.positions, f.store, f.alerts, opts, f.clock.Now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
