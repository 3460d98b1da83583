package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"familytrack/internal/cache"
	"familytrack/internal/core/model"
	"familytrack/internal/core/repository"
	"familytrack/internal/core/service"
	"familytrack/internal/core/tracker"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireEvent struct {
	Type     model.EventType `json:"type"`
	FamilyID string          `json:"familyId"`
	UserID   string          `json:"userId"`
	Data     json.RawMessage `json:"data"`
}

type testEnv struct {
	url       string
	positions *tracker.PositionCache
	hub       *Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repos := repository.NewInMemoryRepositories(
		&model.FamilyMember{UserID: "mom", FamilyID: "fam1", Role: "parent"},
		&model.FamilyMember{UserID: "kid", FamilyID: "fam1", Role: "child"},
		&model.FamilyMember{UserID: "stranger", FamilyID: "fam2", Role: "parent"},
	)
	store := cache.NewMemoryStore(nil)
	opts := tracker.DefaultOptions()
	positions := tracker.NewPositionCache(store, opts, nil)

	hub := NewHub(64, positions)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	locations := service.NewLocationService(repos, service.Trackers{
		Positions:  positions,
		Membership: tracker.NewMembershipTracker(store, opts, nil),
		Proximity:  tracker.NewProximityDetector(positions, store, opts, nil),
		Speed:      tracker.NewSpeedDetector(store, repos.Alerts, opts),
	}, hub, nil)

	srv := NewServer(hub, locations, repos.Families)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.Serve(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return &testEnv{
		url:       "ws" + strings.TrimPrefix(ts.URL, "http"),
		positions: positions,
		hub:       hub,
	}
}

func (e *testEnv) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.url+"?user="+user, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func next(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e wireEvent
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestClientBroadcastsToFamily(t *testing.T) {
	env := newTestEnv(t)

	mom := env.dial(t, "mom")
	kid := env.dial(t, "kid")
	send(t, mom, map[string]string{"type": "join_family", "familyId": "fam1"})
	send(t, kid, map[string]string{"type": "join_family", "familyId": "fam1"})
	require.Eventually(t, func() bool { return env.hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	send(t, kid, map[string]interface{}{
		"type": "location_update",
		"data": map[string]interface{}{"latitude": 37.5, "longitude": 127.0},
	})

	e := next(t, mom)
	assert.Equal(t, model.EventFamilyLocationUpdate, e.Type)
	assert.Equal(t, "fam1", e.FamilyID)

	var update model.LocationUpdate
	require.NoError(t, json.Unmarshal(e.Data, &update))
	assert.Equal(t, "kid", update.UserID)
	assert.InDelta(t, 37.5, update.Latitude, 1e-9)
}

func TestClientRejectsForeignFamily(t *testing.T) {
	env := newTestEnv(t)

	conn := env.dial(t, "stranger")
	send(t, conn, map[string]string{"type": "join_family", "familyId": "fam1"})

	e := next(t, conn)
	assert.Equal(t, model.EventError, e.Type)
	assert.Equal(t, 0, env.hub.Count())

	send(t, conn, map[string]string{"type": "request_location", "targetUserId": "kid"})
	assert.Equal(t, model.EventError, next(t, conn).Type)
}

func TestClientRequestLocation(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "mom")

	send(t, conn, map[string]string{"type": "request_location", "targetUserId": "kid"})
	e := next(t, conn)
	assert.Equal(t, model.EventLocationResponse, e.Type)
	assert.JSONEq(t, `{"error":"location not available"}`, string(e.Data))

	_, err := env.positions.Put(context.Background(), model.CachedPosition{UserID: "kid", Latitude: 1, Longitude: 2, Timestamp: time.Now()})
	require.NoError(t, err)

	send(t, conn, map[string]string{"type": "request_location", "targetUserId": "kid"})
	e = next(t, conn)
	assert.Equal(t, model.EventLocationResponse, e.Type)
	var update model.LocationUpdate
	require.NoError(t, json.Unmarshal(e.Data, &update))
	assert.Equal(t, 2.0, update.Longitude)
}

func TestClientReportsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "kid")

	send(t, conn, map[string]interface{}{
		"type": "location_update",
		"data": map[string]interface{}{"latitude": 123.0, "longitude": 0.0},
	})
	e := next(t, conn)
	assert.Equal(t, model.EventError, e.Type)
	assert.Contains(t, string(e.Data), "latitude")

	send(t, conn, map[string]string{"type": "dance"})
	assert.Equal(t, model.EventError, next(t, conn).Type)

	send(t, conn, map[string]interface{}{
		"type": "location_update",
		"data": map[string]interface{}{"userId": "mom", "latitude": 1.0, "longitude": 1.0},
	})
	assert.Equal(t, model.EventError, next(t, conn).Type)
}

func TestClientDisconnectUnsubscribes(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "mom")
	send(t, conn, map[string]string{"type": "join_family", "familyId": "fam1"})
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return env.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
