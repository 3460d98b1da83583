package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"familytrack/internal/cache"
	"familytrack/internal/core/model"
	"familytrack/internal/core/repository"
	"familytrack/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureQueue struct {
	jobs []*worker.Job
}

func (q *captureQueue) Enqueue(job *worker.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeChannel struct {
	name string
	mu   sync.Mutex
	sent [][]Recipient
	err  error
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, recipients []Recipient, _ Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, recipients)
	return c.err
}

func families() repository.FamilyRepository {
	repo := repository.NewInMemoryFamilyRepository()
	repo.Add(
		&model.FamilyMember{UserID: "mom", FamilyID: "fam", Role: "parent_admin", Name: "Mom"},
		&model.FamilyMember{UserID: "dad", FamilyID: "fam", Role: "parent", Name: "Dad"},
		&model.FamilyMember{UserID: "kid", FamilyID: "fam", Role: "child"},
		&model.FamilyMember{UserID: "sibling", FamilyID: "fam", Role: "child"},
		&model.FamilyMember{UserID: "other", FamilyID: "fam2", Role: "parent"},
	)
	return repo
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&fakeChannel{name: "sms"}, &fakeChannel{name: "in_app"})
	assert.Equal(t, []string{"in_app", "sms"}, r.Names())

	_, ok := r.Get("kakao")
	assert.False(t, ok)
	ch, ok := r.Get("sms")
	require.True(t, ok)
	assert.Equal(t, "sms", ch.Name())
}

func TestDispatcherSelectsGuardians(t *testing.T) {
	queue := &captureQueue{}
	d := NewDispatcher(families(), NewRegistry(&fakeChannel{name: ChannelInApp}, &fakeChannel{name: ChannelPush}), queue)

	err := d.Notify(context.Background(), model.Notice{Type: model.NoticeSpeed, UserID: "kid", Title: "Speed alert", Priority: "high"})
	require.NoError(t, err)
	require.Len(t, queue.jobs, 2)

	delivery := queue.jobs[0].Payload.(Delivery)
	assert.Equal(t, ChannelInApp, delivery.Channel)
	assert.ElementsMatch(t, []Recipient{{UserID: "dad", Name: "Dad"}, {UserID: "mom", Name: "Mom"}}, delivery.Recipients)
	assert.Equal(t, "kid", delivery.Content.SubjectUserID)
	assert.Equal(t, worker.DefaultMaxAttempts, queue.jobs[0].MaxAttempts)

	// the subject is never notified about itself
	queue.jobs = nil
	require.NoError(t, d.Notify(context.Background(), model.Notice{UserID: "mom"}))
	require.Len(t, queue.jobs, 2)
	assert.Equal(t, []Recipient{{UserID: "dad", Name: "Dad"}}, queue.jobs[0].Payload.(Delivery).Recipients)

	queue.jobs = nil
	require.NoError(t, d.Notify(context.Background(), model.Notice{UserID: "stranger"}))
	assert.Empty(t, queue.jobs)
}

func TestDispatcherDeliversThroughPool(t *testing.T) {
	ch := &fakeChannel{name: ChannelSMS}
	registry := NewRegistry(ch)

	var d *Dispatcher
	pool := worker.NewPool(1, func(ctx context.Context, job *worker.Job) error { return d.Handle(ctx, job) })
	d = NewDispatcher(families(), registry, pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	require.NoError(t, d.Notify(ctx, model.Notice{UserID: "kid", Title: "hi"}))
	require.Eventually(t, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return len(ch.sent) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDispatcherHandleErrors(t *testing.T) {
	d := NewDispatcher(families(), NewRegistry(&fakeChannel{name: ChannelPush, err: errors.New("down")}), &captureQueue{})

	err := d.Handle(context.Background(), &worker.Job{Payload: Delivery{Channel: "fax"}})
	assert.ErrorContains(t, err, "unknown channel")

	err = d.Handle(context.Background(), &worker.Job{Payload: "junk"})
	assert.ErrorContains(t, err, "unexpected payload")

	err = d.Handle(context.Background(), &worker.Job{Payload: Delivery{Channel: ChannelPush}})
	assert.EqualError(t, err, "down")
}

func TestKakaoChannel(t *testing.T) {
	var mu sync.Mutex
	var templates []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/api/talk/memo/default/send", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		mu.Lock()
		templates = append(templates, r.PostForm.Get("template_object"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewKakaoChannel(srv.URL, "secret", "https://app.example")
	ch.spacing = time.Millisecond

	err := ch.Send(context.Background(), []Recipient{{UserID: "mom"}, {UserID: "dad"}}, Content{Title: "Geofence alert", Body: "kid entered School"})
	require.NoError(t, err)
	require.Len(t, templates, 2)

	var tpl kakaoTemplate
	require.NoError(t, json.Unmarshal([]byte(templates[0]), &tpl))
	assert.Equal(t, "text", tpl.ObjectType)
	assert.Equal(t, "[Geofence alert] kid entered School", tpl.Text)
	assert.Equal(t, "https://app.example", tpl.Link.WebURL)
}

func TestKakaoChannelFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewKakaoChannel(srv.URL, "", "").Send(context.Background(), []Recipient{{UserID: "mom"}}, Content{})
	assert.ErrorContains(t, err, "token")

	ch := NewKakaoChannel(srv.URL, "expired", "")
	ch.spacing = time.Millisecond
	err = ch.Send(context.Background(), []Recipient{{UserID: "mom"}}, Content{})
	assert.ErrorContains(t, err, "401")
}

func TestWebhookChannel(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "n-1", r.Header.Get("Idempotency-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(ChannelSMS, srv.URL)
	err := ch.Send(context.Background(), []Recipient{{UserID: "mom"}}, Content{ID: "n-1", Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, ChannelSMS, got.Channel)
	assert.Equal(t, "hello", got.Content.Body)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	err = NewWebhookChannel(ChannelPush, failing.URL).Send(context.Background(), nil, Content{})
	assert.ErrorContains(t, err, "502")
}

func TestInAppInbox(t *testing.T) {
	ctx := context.Background()
	ch := NewInAppChannel(cache.NewMemoryStore(nil))

	for _, body := range []string{"first", "second"} {
		err := ch.Send(ctx, []Recipient{{UserID: "mom"}, {UserID: "dad"}}, Content{ID: body, Type: model.NoticeGeofence, Body: body})
		require.NoError(t, err)
	}

	inbox, err := ch.Inbox(ctx, "mom", 10)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "second", inbox[0].Content)
	assert.Equal(t, "first", inbox[1].Content)
	assert.False(t, inbox[0].Read)

	inbox, err = ch.Inbox(ctx, "dad", 1)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)

	inbox, err = ch.Inbox(ctx, "kid", 10)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}
