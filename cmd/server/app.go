package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"familytrack/internal/api/middleware"
	"familytrack/internal/api/router"
	"familytrack/internal/cache"
	"familytrack/internal/config"
	"familytrack/internal/core/repository"
	"familytrack/internal/core/service"
	"familytrack/internal/core/tracker"
	"familytrack/internal/notify"
	"familytrack/internal/realtime"
	"familytrack/internal/worker"
)

const (
	hubBuffer        = 256
	postgresAttempts = 5
	postgresDelay    = 2 * time.Second
)

// app holds every long-lived collaborator of the server and releases them in Close.
type app struct {
	storage   string
	cacheKind string

	repos   *repository.Repositories
	store   cache.Store
	hub     *realtime.Hub
	pool    *worker.Pool
	sweeper *tracker.Sweeper
	handler http.Handler

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{storage: cfg.Storage.Driver}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err = a.openStorage(ctx, cfg.Storage); err != nil {
		return nil, err
	}
	if err = a.openCache(ctx, cfg.Redis); err != nil {
		return nil, err
	}

	opts := cfg.Tracking.Options()
	positions := tracker.NewPositionCache(a.store, opts, nil)
	trackers := service.Trackers{
		Positions:  positions,
		Membership: tracker.NewMembershipTracker(a.store, opts, nil),
		Proximity:  tracker.NewProximityDetector(positions, a.store, opts, nil),
		Speed:      tracker.NewSpeedDetector(a.store, a.repos.Alerts, opts),
	}

	a.hub = realtime.NewHub(hubBuffer, positions)

	registry, inbox := buildRegistry(cfg.Notify, a.store)
	backoff := worker.Exponential{Base: cfg.Notify.BackoffBase}
	var dispatcher *notify.Dispatcher
	a.pool = worker.NewPool(cfg.Notify.Workers, func(ctx context.Context, job *worker.Job) error {
		return dispatcher.Handle(ctx, job)
	})
	a.pool.OnFailed(notify.ReportFailed)
	dispatcher = notify.NewDispatcher(a.repos.Families, registry, retryPolicy{
		queue:       a.pool,
		maxAttempts: cfg.Notify.MaxAttempts,
		backoff:     backoff,
	})
	log.Printf("[notify] channels: %v", registry.Names())

	locations := service.NewLocationService(a.repos, trackers, a.hub, dispatcher)
	geofences := service.NewGeofenceService(a.repos)

	a.sweeper = tracker.NewSweeper(positions, a.store, a.repos.Alerts, opts, nil)
	a.sweeper.OnAlert(locations.HandleInactivity)

	a.handler = router.NewRouter(router.Dependencies{
		Locations: locations,
		Geofences: geofences,
		Realtime:  realtime.NewServer(a.hub, locations, a.repos.Families),
		Clients:   a.hub,
		Inbox:     inbox,
		Auth:      authMiddleware(cfg.Auth),
		Storage:   a.storage,
		Cache:     a.cacheKind,
	})
	return a, nil
}

func (a *app) openStorage(ctx context.Context, cfg config.StorageConfig) error {
	switch cfg.Driver {
	case "mongo":
		client, db, err := config.ConnectMongoDB(ctx, cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.Printf("[server] disconnect MongoDB: %v", err)
			}
		})
		mongoRepos := repository.NewMongoRepositories(db)
		if idx, ok := mongoRepos.Locations.(interface{ EnsureIndexes(context.Context) error }); ok {
			if err := idx.EnsureIndexes(ctx); err != nil {
				log.Printf("[server] location history index: %v", err)
			}
		}
		a.repos = mongoRepos
	case "postgres":
		pool, err := config.ConnectPostgres(ctx, cfg.PostgresDSN, postgresAttempts, postgresDelay)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		a.repos = repository.NewPostgresRepositories(pool)
	case "memory":
		log.Println("[server] using in-memory storage; family membership starts empty")
		a.repos = repository.NewInMemoryRepositories()
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	return nil
}

func (a *app) openCache(ctx context.Context, cfg config.RedisConfig) error {
	if cfg.URL == "" {
		a.cacheKind = "memory"
		a.store = cache.NewMemoryStore(nil)
	} else {
		client, err := cache.NewRedisClient(ctx, cfg.URL)
		if err != nil {
			return err
		}
		a.cacheKind = "redis"
		a.store = cache.NewRedisStore(client)
	}
	store := a.store
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			log.Printf("[server] close cache: %v", err)
		}
	})
	return nil
}

// Close releases collaborators in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func authMiddleware(cfg config.AuthConfig) *middleware.AuthMiddleware {
	m := middleware.NewAuthMiddleware(cfg.JWTSecret)
	if !m.Enabled() {
		log.Println("[auth] JWT_ACCESS_SECRET not set; requests are not authenticated")
	}
	return m
}

// buildRegistry registers the configured channels that have the settings they need.
func buildRegistry(cfg config.NotifyConfig, store cache.Store) (*notify.Registry, *notify.InAppChannel) {
	registry := notify.NewRegistry()
	var inbox *notify.InAppChannel

	for _, name := range cfg.Channels {
		switch name {
		case notify.ChannelInApp:
			inbox = notify.NewInAppChannel(store)
			registry.Register(inbox)
		case notify.ChannelKakao:
			if cfg.KakaoToken == "" {
				log.Println("[notify] kakao enabled without KAKAO_ACCESS_TOKEN; skipping")
				continue
			}
			registry.Register(notify.NewKakaoChannel(cfg.KakaoBaseURL, cfg.KakaoToken, cfg.LinkURL))
		case notify.ChannelSMS:
			if cfg.SMSWebhookURL == "" {
				log.Println("[notify] sms enabled without SMS_WEBHOOK_URL; skipping")
				continue
			}
			registry.Register(notify.NewWebhookChannel(notify.ChannelSMS, cfg.SMSWebhookURL))
		case notify.ChannelPush:
			if cfg.PushWebhookURL == "" {
				log.Println("[notify] push enabled without PUSH_WEBHOOK_URL; skipping")
				continue
			}
			registry.Register(notify.NewWebhookChannel(notify.ChannelPush, cfg.PushWebhookURL))
		}
	}
	return registry, inbox
}

// retryPolicy applies the configured attempts and backoff to every delivery job.
type retryPolicy struct {
	queue       notify.Enqueuer
	maxAttempts int
	backoff     worker.Backoff
}

func (p retryPolicy) Enqueue(job *worker.Job) error {
	job.MaxAttempts = p.maxAttempts
	job.Backoff = p.backoff
	return p.queue.Enqueue(job)
}
