package tracker

import (
	"context"
	"fmt"
	"log"
	"time"

	"familytrack/internal/cache"
	"familytrack/internal/core/model"
	"familytrack/internal/core/repository"
)

// Sweeper periodically looks for users whose last position is older than the inactivity
// threshold and raises one alert per silent period.
type Sweeper struct {
	positions *PositionCache
	store     cache.Store
	alerts    repository.AlertRepository
	threshold time.Duration
	interval  time.Duration
	flagTTL   time.Duration
	now       func() time.Time
	onAlert   func(context.Context, *model.InactivityAlert)
}

func NewSweeper(positions *PositionCache, store cache.Store, alerts repository.AlertRepository, opts Options, now func() time.Time) *Sweeper {
	opts = opts.withDefaults()
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		positions: positions,
		store:     store,
		alerts:    alerts,
		threshold: opts.InactivityThreshold,
		interval:  opts.SweepInterval,
		flagTTL:   opts.Retention,
		now:       now,
	}
}

// OnAlert registers fn to be called for every newly raised alert.
func (s *Sweeper) OnAlert(fn func(context.Context, *model.InactivityAlert)) {
	s.onAlert = fn
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[sweeper] started, interval %s threshold %s", s.interval, s.threshold)
	for {
		select {
		case <-ctx.Done():
			log.Println("[sweeper] stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.Printf("[sweeper] sweep failed: %v", err)
			}
		}
	}
}

// Sweep runs a single pass and returns the alerts it raised.
func (s *Sweeper) Sweep(ctx context.Context) ([]*model.InactivityAlert, error) {
	positions, err := s.positions.All(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var raised []*model.InactivityAlert
	for _, pos := range positions {
		if now.Sub(pos.Timestamp) <= s.threshold {
			continue
		}

		alert, err := s.raise(ctx, pos, now)
		if err != nil {
			log.Printf("[sweeper] inactivity alert for %s: %v", pos.UserID, err)
			continue
		}
		if alert == nil {
			continue
		}
		raised = append(raised, alert)
		if s.onAlert != nil {
			s.onAlert(ctx, alert)
		}
	}
	return raised, nil
}

// raise claims the episode identified by the last-seen timestamp and persists the alert.
// It returns nil when the episode was already alerted.
func (s *Sweeper) raise(ctx context.Context, pos *model.CachedPosition, now time.Time) (*model.InactivityAlert, error) {
	key := inactivePrefix + pos.UserID
	lastSeen := cache.Millis(pos.Timestamp)

	prev, swapped, err := s.store.SwapIfNewer(ctx, key, cache.Entry{Timestamp: lastSeen}, s.flagTTL)
	if err != nil {
		return nil, fmt.Errorf("claim episode: %w", err)
	}
	if !swapped || (prev != nil && prev.Timestamp == lastSeen) {
		return nil, nil
	}

	alert := model.NewInactivityAlert(pos.UserID, pos.Timestamp, now)
	if err := s.alerts.CreateInactivityAlert(ctx, alert); err != nil {
		// release the claim so the next pass retries
		if derr := s.store.Delete(ctx, key); derr != nil {
			log.Printf("[sweeper] release claim %s: %v", key, derr)
		}
		return nil, fmt.Errorf("persist: %w", err)
	}
	return alert, nil
}
