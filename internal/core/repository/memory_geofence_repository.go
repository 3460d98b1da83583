package repository

import (
	"context"
	"sort"
	"sync"

	"familytrack/internal/core/model"
)

type inMemoryGeofenceRepository struct {
	fences map[string]*model.Geofence
	mutex  sync.RWMutex
}

func NewInMemoryGeofenceRepository() GeofenceRepository {
	return &inMemoryGeofenceRepository{
		fences: make(map[string]*model.Geofence),
	}
}

func (r *inMemoryGeofenceRepository) Create(_ context.Context, fence *model.Geofence) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	copied := *fence
	r.fences[fence.ID] = &copied
	return nil
}

func (r *inMemoryGeofenceRepository) Update(_ context.Context, fence *model.Geofence) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.fences[fence.ID]; !exists {
		return ErrNotFound
	}
	copied := *fence
	r.fences[fence.ID] = &copied
	return nil
}

func (r *inMemoryGeofenceRepository) FindByID(_ context.Context, id string) (*model.Geofence, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if fence, exists := r.fences[id]; exists {
		copied := *fence
		return &copied, nil
	}
	return nil, nil
}

func (r *inMemoryGeofenceRepository) FindByOwner(_ context.Context, ownerUserID string) ([]*model.Geofence, error) {
	return r.filter(func(f *model.Geofence) bool { return f.OwnerUserID == ownerUserID }), nil
}

func (r *inMemoryGeofenceRepository) FindActiveByOwner(_ context.Context, ownerUserID string) ([]*model.Geofence, error) {
	return r.filter(func(f *model.Geofence) bool { return f.OwnerUserID == ownerUserID && f.Active }), nil
}

func (r *inMemoryGeofenceRepository) filter(keep func(*model.Geofence) bool) []*model.Geofence {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.Geofence
	for _, fence := range r.fences {
		if keep(fence) {
			copied := *fence
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}
