package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"familytrack/internal/cache"
	"familytrack/internal/core/geo"
	"familytrack/internal/core/model"
	"familytrack/internal/core/repository"
)

// SpeedDetector flags implausibly fast movement between consecutive samples of a user.
type SpeedDetector struct {
	store     cache.Store
	alerts    repository.AlertRepository
	threshold float64
	ttl       time.Duration
}

func NewSpeedDetector(store cache.Store, alerts repository.AlertRepository, opts Options) *SpeedDetector {
	opts = opts.withDefaults()
	return &SpeedDetector{
		store:     store,
		alerts:    alerts,
		threshold: opts.SpeedThresholdMps,
		ttl:       opts.PreviousTTL,
	}
}

// Check computes the speed from the previous sample to sample and persists an alert above
// the threshold. The previous sample is replaced unless a newer one is already recorded.
func (d *SpeedDetector) Check(ctx context.Context, sample *model.LocationSample) (*model.SpeedAlert, error) {
	data, err := json.Marshal(sample)
	if err != nil {
		return nil, err
	}

	key := previousPrefix + sample.UserID
	entry := cache.Entry{Timestamp: cache.Millis(sample.Timestamp), Data: data}
	prevEntry, _, err := d.store.SwapIfNewer(ctx, key, entry, d.ttl)
	if err != nil {
		return nil, fmt.Errorf("previous sample %s: %w", sample.UserID, err)
	}
	if prevEntry == nil {
		return nil, nil
	}

	var prev model.LocationSample
	if err := json.Unmarshal(prevEntry.Data, &prev); err != nil {
		return nil, fmt.Errorf("previous sample %s: %w", sample.UserID, err)
	}

	dt := sample.Timestamp.Sub(prev.Timestamp).Seconds()
	if dt <= 0 {
		return nil, nil
	}

	speed := geo.Distance(prev.Point(), sample.Point()) / dt
	if speed <= d.threshold {
		return nil, nil
	}

	alert := model.NewSpeedAlert(sample, speed)
	if err := d.alerts.CreateSpeedAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("persist speed alert %s: %w", sample.UserID, err)
	}
	return alert, nil
}
