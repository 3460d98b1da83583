package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"familytrack/internal/cache"
	"familytrack/internal/core/model"
)

var (
	// ErrUnknown means there is no fresh position for the user.
	ErrUnknown = errors.New("position unknown")
	// ErrFromFuture rejects timestamps too far ahead of the local clock. Such a sample would
	// win every later swap until it expired.
	ErrFromFuture = errors.New("timestamp is in the future")
)

// PositionCache is the source of truth for "where is this user now".
//
// Entries are kept for the retention window so the sweeper can still see users that went
// silent, but Get only returns them until the freshness deadline.
type PositionCache struct {
	store     cache.Store
	freshness time.Duration
	retention time.Duration
	maxSkew   time.Duration
	now       func() time.Time
}

func NewPositionCache(store cache.Store, opts Options, now func() time.Time) *PositionCache {
	opts = opts.withDefaults()
	if now == nil {
		now = time.Now
	}
	return &PositionCache{
		store:     store,
		freshness: opts.Freshness,
		retention: opts.Retention,
		maxSkew:   opts.MaxClockSkew,
		now:       now,
	}
}

// CheckTimestamp returns ErrFromFuture when ts is more than the allowed skew ahead of now.
func (c *PositionCache) CheckTimestamp(ts time.Time) error {
	if limit := c.now().Add(c.maxSkew); ts.After(limit) {
		return fmt.Errorf("%w: %s is after %s", ErrFromFuture, ts.UTC().Format(time.RFC3339), limit.UTC().Format(time.RFC3339))
	}
	return nil
}

// Put records pos unless a position with a later timestamp is already cached.
// It reports whether pos became the current position.
func (c *PositionCache) Put(ctx context.Context, pos model.CachedPosition) (bool, error) {
	pos.FreshUntil = c.now().Add(c.freshness)
	data, err := json.Marshal(pos)
	if err != nil {
		return false, err
	}

	entry := cache.Entry{Timestamp: cache.Millis(pos.Timestamp), Data: data}
	_, stored, err := c.store.SwapIfNewer(ctx, positionPrefix+pos.UserID, entry, c.retention)
	if err != nil {
		return false, fmt.Errorf("position cache put %s: %w", pos.UserID, err)
	}
	return stored, nil
}

// Get returns the user's position while it is fresh, otherwise ErrUnknown.
func (c *PositionCache) Get(ctx context.Context, userID string) (*model.CachedPosition, error) {
	pos, err := c.load(ctx, positionPrefix+userID)
	if err != nil {
		return nil, err
	}
	if !pos.Fresh(c.now()) {
		return nil, ErrUnknown
	}
	return pos, nil
}

// All enumerates every retained position, stale ones included.
func (c *PositionCache) All(ctx context.Context) ([]*model.CachedPosition, error) {
	keys, err := c.store.Keys(ctx, positionPrefix)
	if err != nil {
		return nil, fmt.Errorf("position cache scan: %w", err)
	}

	positions := make([]*model.CachedPosition, 0, len(keys))
	for _, key := range keys {
		pos, err := c.load(ctx, key)
		if errors.Is(err, ErrUnknown) {
			// expired between scan and read
			continue
		}
		if err != nil {
			return positions, err
		}
		if pos.UserID == "" {
			pos.UserID = strings.TrimPrefix(key, positionPrefix)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (c *PositionCache) load(ctx context.Context, key string) (*model.CachedPosition, error) {
	entry, err := c.store.Get(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("position cache get %s: %w", key, err)
	}

	var pos model.CachedPosition
	if err := json.Unmarshal(entry.Data, &pos); err != nil {
		return nil, fmt.Errorf("position cache decode %s: %w", key, err)
	}
	return &pos, nil
}
