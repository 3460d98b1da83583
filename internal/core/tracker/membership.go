package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"familytrack/internal/cache"
	"familytrack/internal/core/model"
)

// MembershipTracker remembers which side of each geofence a user was last seen on
// and turns state changes into enter/exit transitions.
type MembershipTracker struct {
	store cache.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewMembershipTracker(store cache.Store, opts Options, now func() time.Time) *MembershipTracker {
	opts = opts.withDefaults()
	if now == nil {
		now = time.Now
	}
	return &MembershipTracker{store: store, ttl: opts.MembershipTTL, now: now}
}

func membershipKey(fenceID, userID string) string {
	return membershipPrefix + fenceID + ":" + userID
}

// Evaluate records the user's side of fence at pos and returns the transition to report.
//
// An unknown prior state is recorded without ever producing an exit. Transitions are
// suppressed when the fence disables alerts for that direction, and a sample older than
// the recorded state leaves it untouched.
func (t *MembershipTracker) Evaluate(ctx context.Context, userID string, pos model.CachedPosition, fence *model.Geofence) (model.Transition, error) {
	inside := fence.Contains(pos.Point())
	now := t.now()

	record := model.GeofenceMembership{
		GeofenceID: fence.ID,
		UserID:     userID,
		Inside:     inside,
		RecordedAt: now,
		ExpiresAt:  now.Add(t.ttl),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return model.TransitionUnchanged, err
	}

	entry := cache.Entry{Timestamp: cache.Millis(pos.Timestamp), Data: data}
	prev, swapped, err := t.store.SwapIfNewer(ctx, membershipKey(fence.ID, userID), entry, t.ttl)
	if err != nil {
		return model.TransitionUnchanged, fmt.Errorf("membership %s/%s: %w", fence.ID, userID, err)
	}
	if !swapped {
		return model.TransitionUnchanged, nil
	}

	if prev == nil {
		if inside && fence.AlertOnEnter {
			return model.TransitionEntered, nil
		}
		return model.TransitionUnchanged, nil
	}

	var last model.GeofenceMembership
	if err := json.Unmarshal(prev.Data, &last); err != nil {
		// unreadable record is treated as unknown
		if inside && fence.AlertOnEnter {
			return model.TransitionEntered, nil
		}
		return model.TransitionUnchanged, nil
	}

	switch {
	case !last.Inside && inside && fence.AlertOnEnter:
		return model.TransitionEntered, nil
	case last.Inside && !inside && fence.AlertOnExit:
		return model.TransitionExited, nil
	}
	return model.TransitionUnchanged, nil
}
