package realtime

import (
	"context"
	"testing"
	"time"

	"familytrack/internal/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(64, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func receive(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return model.Event{}
}

func assertSilent(t *testing.T, ch <-chan model.Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubScopesToFamily(t *testing.T) {
	h := startHub(t)
	ctx := context.Background()

	a := h.Subscribe(ctx, "a", "fam1", 4)
	b := h.Subscribe(ctx, "b", "fam1", 4)
	other := h.Subscribe(ctx, "c", "fam2", 4)

	h.Publish("fam1", model.Event{Type: model.EventProximity, UserID: "kid"})

	assert.Equal(t, "fam1", receive(t, a).FamilyID)
	assert.Equal(t, model.EventProximity, receive(t, b).Type)
	assertSilent(t, other)
	assert.Equal(t, 3, h.Count())
}

func TestHubSkipsOrigin(t *testing.T) {
	h := startHub(t)
	ctx := context.Background()

	sender := h.Subscribe(ctx, "sender", "fam", 4)
	peer := h.Subscribe(ctx, "peer", "fam", 4)

	h.Publish("fam", model.Event{Type: model.EventFamilyLocationUpdate, Origin: "sender"})

	receive(t, peer)
	assertSilent(t, sender)
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := startHub(t)
	ctx := context.Background()

	slow := h.Subscribe(ctx, "slow", "fam", 1)
	fast := h.Subscribe(ctx, "fast", "fam", 16)

	for i := 0; i < 10; i++ {
		h.Publish("fam", model.Event{Type: model.EventFamilyLocationUpdate})
	}
	for i := 0; i < 10; i++ {
		receive(t, fast)
	}
	receive(t, slow)
	assertSilent(t, slow)
}

func TestHubUnsubscribesOnCancel(t *testing.T) {
	h := startHub(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch := h.Subscribe(ctx, "a", "fam", 4)
	keep := h.Subscribe(context.Background(), "b", "fam", 4)
	require.Equal(t, 2, h.Count())

	cancel()
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 5*time.Millisecond)

	_, open := <-ch
	assert.False(t, open)

	h.Publish("fam", model.Event{Type: model.EventInactivity})
	receive(t, keep)
}

func TestHubStopClosesSubscriptions(t *testing.T) {
	h := NewHub(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	ch := h.Subscribe(context.Background(), "a", "fam", 4)
	cancel()
	<-stopped

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	assert.Equal(t, 0, h.Count())
}
