package repository

import (
	"context"
	"sort"
	"sync"

	"familytrack/internal/core/model"
)

type inMemoryLocationRepository struct {
	samples map[string][]*model.LocationSample
	mutex   sync.RWMutex
}

func NewInMemoryLocationRepository() LocationRepository {
	return &inMemoryLocationRepository{
		samples: make(map[string][]*model.LocationSample),
	}
}

func (r *inMemoryLocationRepository) Create(_ context.Context, sample *model.LocationSample) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	copied := *sample
	r.samples[sample.UserID] = append(r.samples[sample.UserID], &copied)
	return nil
}

func (r *inMemoryLocationRepository) Delete(_ context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for userID, samples := range r.samples {
		for i, sample := range samples {
			if sample.ID == id {
				r.samples[userID] = append(samples[:i:i], samples[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (r *inMemoryLocationRepository) FindByUserID(_ context.Context, userID string, q HistoryQuery) ([]*model.LocationSample, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.LocationSample
	for _, sample := range r.samples[userID] {
		if q.contains(sample.Timestamp) {
			result = append(result, sample)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit := q.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *inMemoryLocationRepository) FindLatestByUserID(_ context.Context, userID string) (*model.LocationSample, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest *model.LocationSample
	for _, sample := range r.samples[userID] {
		if latest == nil || sample.Timestamp.After(latest.Timestamp) {
			latest = sample
		}
	}
	return latest, nil
}
