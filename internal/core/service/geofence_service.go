package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"familytrack/internal/core/apperr"
	"familytrack/internal/core/model"
	"familytrack/internal/core/repository"
)

// CreateGeofenceRequest describes a new fence. Omitted alert flags default to true.
type CreateGeofenceRequest struct {
	OwnerUserID  string             `json:"ownerUserId" validate:"required"`
	Name         string             `json:"name" validate:"required,max=100"`
	CenterLat    *float64           `json:"centerLat" validate:"required,gte=-90,lte=90"`
	CenterLng    *float64           `json:"centerLng" validate:"required,gte=-180,lte=180"`
	RadiusMeters *float64           `json:"radiusMeters" validate:"required,gte=10,lte=10000"`
	Kind         model.GeofenceKind `json:"kind" validate:"omitempty,oneof=safe_zone alert_zone restricted_zone"`
	AlertOnEnter *bool              `json:"alertOnEnter,omitempty"`
	AlertOnExit  *bool              `json:"alertOnExit,omitempty"`
}

// UpdateGeofenceRequest carries a partial update; nil fields are left as they are.
type UpdateGeofenceRequest struct {
	Name         *string             `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	CenterLat    *float64            `json:"centerLat,omitempty" validate:"omitempty,gte=-90,lte=90"`
	CenterLng    *float64            `json:"centerLng,omitempty" validate:"omitempty,gte=-180,lte=180"`
	RadiusMeters *float64            `json:"radiusMeters,omitempty" validate:"omitempty,gte=10,lte=10000"`
	Kind         *model.GeofenceKind `json:"kind,omitempty" validate:"omitempty,oneof=safe_zone alert_zone restricted_zone"`
	AlertOnEnter *bool               `json:"alertOnEnter,omitempty"`
	AlertOnExit  *bool               `json:"alertOnExit,omitempty"`
	Active       *bool               `json:"active,omitempty"`
}

type GeofenceService interface {
	Create(ctx context.Context, callerID string, req CreateGeofenceRequest) (*model.Geofence, error)
	Update(ctx context.Context, callerID, id string, req UpdateGeofenceRequest) (*model.Geofence, error)
	// Deactivate soft-deletes the fence; it stops being evaluated for new samples.
	Deactivate(ctx context.Context, callerID, id string) error
	Get(ctx context.Context, callerID, id string) (*model.Geofence, error)
	ListByOwner(ctx context.Context, callerID, ownerUserID string) ([]*model.Geofence, error)
	ListAlerts(ctx context.Context, callerID, ownerUserID string, limit, offset int) ([]*model.GeofenceAlert, error)
}

type geofenceService struct {
	repos *repository.Repositories
	now   func() time.Time
}

func NewGeofenceService(repos *repository.Repositories) GeofenceService {
	return &geofenceService{repos: repos, now: time.Now}
}

func (s *geofenceService) Create(ctx context.Context, callerID string, req CreateGeofenceRequest) (*model.Geofence, error) {
	const op = "geofence.create"

	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return nil, apperr.Validation(op, "%s", describe(err))
	}
	if err := validateFamilyAccess(ctx, s.repos.Families, op, callerID, req.OwnerUserID); err != nil {
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = model.KindSafeZone
	}
	fence := model.NewGeofence(req.OwnerUserID, req.Name, *req.CenterLat, *req.CenterLng, *req.RadiusMeters, kind)
	if req.AlertOnEnter != nil {
		fence.AlertOnEnter = *req.AlertOnEnter
	}
	if req.AlertOnExit != nil {
		fence.AlertOnExit = *req.AlertOnExit
	}

	if err := s.repos.Geofences.Create(ctx, fence); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return fence, nil
}

func (s *geofenceService) Update(ctx context.Context, callerID, id string, req UpdateGeofenceRequest) (*model.Geofence, error) {
	const op = "geofence.update"

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := validate.Struct(req); err != nil {
		return nil, apperr.Validation(op, "%s", describe(err))
	}

	fence, err := s.find(ctx, op, callerID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		fence.Name = *req.Name
	}
	if req.CenterLat != nil {
		fence.CenterLat = *req.CenterLat
	}
	if req.CenterLng != nil {
		fence.CenterLng = *req.CenterLng
	}
	if req.RadiusMeters != nil {
		fence.RadiusMeters = *req.RadiusMeters
	}
	if req.Kind != nil {
		fence.Kind = *req.Kind
	}
	if req.AlertOnEnter != nil {
		fence.AlertOnEnter = *req.AlertOnEnter
	}
	if req.AlertOnExit != nil {
		fence.AlertOnExit = *req.AlertOnExit
	}
	if req.Active != nil {
		fence.Active = *req.Active
	}
	fence.UpdatedAt = s.now().UTC()

	if err := s.save(ctx, op, fence); err != nil {
		return nil, err
	}
	return fence, nil
}

func (s *geofenceService) Deactivate(ctx context.Context, callerID, id string) error {
	const op = "geofence.deactivate"

	fence, err := s.find(ctx, op, callerID, id)
	if err != nil {
		return err
	}
	if !fence.Active {
		return nil
	}
	fence.Active = false
	fence.UpdatedAt = s.now().UTC()
	return s.save(ctx, op, fence)
}

func (s *geofenceService) Get(ctx context.Context, callerID, id string) (*model.Geofence, error) {
	return s.find(ctx, "geofence.get", callerID, id)
}

func (s *geofenceService) ListByOwner(ctx context.Context, callerID, ownerUserID string) ([]*model.Geofence, error) {
	const op = "geofence.list"
	if err := validateFamilyAccess(ctx, s.repos.Families, op, callerID, ownerUserID); err != nil {
		return nil, err
	}
	fences, err := s.repos.Geofences.FindByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	return fences, nil
}

func (s *geofenceService) ListAlerts(ctx context.Context, callerID, ownerUserID string, limit, offset int) ([]*model.GeofenceAlert, error) {
	const op = "geofence.alerts"
	if limit < 0 || offset < 0 {
		return nil, apperr.Validation(op, "limit and offset must not be negative")
	}
	if err := validateFamilyAccess(ctx, s.repos.Families, op, callerID, ownerUserID); err != nil {
		return nil, err
	}
	alerts, err := s.repos.Alerts.FindGeofenceAlertsByOwner(ctx, ownerUserID, limit, offset)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	return alerts, nil
}

func (s *geofenceService) find(ctx context.Context, op, callerID, id string) (*model.Geofence, error) {
	if id == "" {
		return nil, apperr.Validation(op, "geofence id is required")
	}
	fence, err := s.repos.Geofences.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if fence == nil {
		return nil, apperr.NotFound(op, "geofence %s not found", id)
	}
	if err := validateFamilyAccess(ctx, s.repos.Families, op, callerID, fence.OwnerUserID); err != nil {
		return nil, err
	}
	return fence, nil
}

func (s *geofenceService) save(ctx context.Context, op string, fence *model.Geofence) error {
	err := s.repos.Geofences.Update(ctx, fence)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(op, "geofence %s not found", fence.ID)
	}
	if err != nil {
		return apperr.Storage(op, err)
	}
	return nil
}
