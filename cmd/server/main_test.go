package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"familytrack/internal/config"
	"familytrack/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"distance", "0,0", "0,1"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "111194.9 m (111.195 km)\n", out.String())
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"37.5,127", false},
		{" 37.5 , 127 ", false},
		{"37.5", true},
		{"north,127", true},
		{"91,0", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := parsePoint(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSimulatePostsUpdates(t *testing.T) {
	var mu sync.Mutex
	var got []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/location/update", r.URL.Path)
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		got = append(got, body)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := simulate(context.Background(), &out, simulateOptions{
		server: srv.URL, userID: "kid", start: "37.5,127", steps: 3, north: 100, interval: time.Millisecond,
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, "kid", got[0]["userId"])
	assert.Equal(t, 37.5, got[0]["latitude"])
	assert.Greater(t, got[2]["latitude"].(float64), got[1]["latitude"].(float64))
}

func TestSimulateRequiresIdentity(t *testing.T) {
	err := simulate(context.Background(), &bytes.Buffer{}, simulateOptions{start: "0,0", steps: 1})
	assert.Error(t, err)
}

func TestBuildRegistrySkipsUnconfiguredChannels(t *testing.T) {
	cfg := config.Default().Notify
	cfg.Channels = []string{"in_app", "kakao", "sms", "push"}
	cfg.PushWebhookURL = "http://push.example/send"

	registry, inbox := buildRegistry(cfg, nil)
	assert.NotNil(t, inbox)
	assert.Equal(t, []string{notify.ChannelInApp, notify.ChannelPush}, registry.Names())
}

func TestNewAppInMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "memory"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()
	go a.hub.Run(ctx)

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "memory", body["storage"])
	assert.Equal(t, "memory", body["cache"])
}
