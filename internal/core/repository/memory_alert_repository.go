package repository

import (
	"context"
	"sort"
	"sync"

	"familytrack/internal/core/model"
)

// InMemoryAlertRepository also exposes what it stored so callers can inspect emitted alerts.
type InMemoryAlertRepository struct {
	geofenceAlerts   []*model.GeofenceAlert
	speedAlerts      []*model.SpeedAlert
	inactivityAlerts []*model.InactivityAlert
	mutex            sync.RWMutex
}

func NewInMemoryAlertRepository() *InMemoryAlertRepository {
	return &InMemoryAlertRepository{}
}

func (r *InMemoryAlertRepository) CreateGeofenceAlert(_ context.Context, alert *model.GeofenceAlert) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	copied := *alert
	r.geofenceAlerts = append(r.geofenceAlerts, &copied)
	return nil
}

func (r *InMemoryAlertRepository) FindGeofenceAlertsByOwner(_ context.Context, ownerUserID string, limit, offset int) ([]*model.GeofenceAlert, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.GeofenceAlert
	for _, alert := range r.geofenceAlerts {
		if alert.OwnerUserID == ownerUserID {
			result = append(result, alert)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TriggeredAt.After(result[j].TriggeredAt)
	})

	limit, offset = page(limit, offset)
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *InMemoryAlertRepository) CreateSpeedAlert(_ context.Context, alert *model.SpeedAlert) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	copied := *alert
	r.speedAlerts = append(r.speedAlerts, &copied)
	return nil
}

func (r *InMemoryAlertRepository) CreateInactivityAlert(_ context.Context, alert *model.InactivityAlert) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	copied := *alert
	r.inactivityAlerts = append(r.inactivityAlerts, &copied)
	return nil
}

func (r *InMemoryAlertRepository) SpeedAlerts() []*model.SpeedAlert {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]*model.SpeedAlert(nil), r.speedAlerts...)
}

func (r *InMemoryAlertRepository) InactivityAlerts() []*model.InactivityAlert {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]*model.InactivityAlert(nil), r.inactivityAlerts...)
}
