package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"familytrack/internal/cache"
	"familytrack/internal/core/geo"
	"familytrack/internal/core/model"
)

// ProximityDetector reports family members that are close to a user who just moved.
type ProximityDetector struct {
	positions *PositionCache
	store     cache.Store
	meters    float64
	debounce  bool
	pairTTL   time.Duration
	now       func() time.Time
}

func NewProximityDetector(positions *PositionCache, store cache.Store, opts Options, now func() time.Time) *ProximityDetector {
	opts = opts.withDefaults()
	if now == nil {
		now = time.Now
	}
	return &ProximityDetector{
		positions: positions,
		store:     store,
		meters:    opts.ProximityMeters,
		debounce:  opts.ProximityDebounce,
		pairTTL:   opts.MembershipTTL,
		now:       now,
	}
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return proximityPrefix + a + ":" + b
}

// Check compares pos against the fresh positions of the other members.
// Members without a fresh position are skipped. With debounce enabled a pair is
// reported again only after it has been seen out of range.
func (d *ProximityDetector) Check(ctx context.Context, userID string, pos model.CachedPosition, members []*model.FamilyMember) ([]model.ProximityEvent, error) {
	var events []model.ProximityEvent
	var errs []error

	for _, m := range members {
		if m.UserID == userID {
			continue
		}
		other, err := d.positions.Get(ctx, m.UserID)
		if errors.Is(err, ErrUnknown) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		dist := geo.Distance(pos.Point(), other.Point())
		near := dist < d.meters

		if d.debounce {
			report, err := d.pairState(ctx, userID, m.UserID, near)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !report {
				continue
			}
		} else if !near {
			continue
		}

		events = append(events, model.ProximityEvent{
			UserID:         userID,
			OtherUserID:    m.UserID,
			DistanceMeters: dist,
			DetectedAt:     d.now(),
		})
	}

	return events, errors.Join(errs...)
}

// pairState updates the pair record and reports whether the pair just came into range.
func (d *ProximityDetector) pairState(ctx context.Context, a, b string, near bool) (bool, error) {
	key := pairKey(a, b)
	if !near {
		if err := d.store.Delete(ctx, key); err != nil {
			return false, fmt.Errorf("proximity pair %s: %w", key, err)
		}
		return false, nil
	}

	// Timestamp 0 always swaps, so prev tells atomically whether the pair was already near.
	prev, _, err := d.store.SwapIfNewer(ctx, key, cache.Entry{Data: []byte("1")}, d.pairTTL)
	if err != nil {
		return false, fmt.Errorf("proximity pair %s: %w", key, err)
	}
	return prev == nil, nil
}
