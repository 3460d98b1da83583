package model

import (
	"time"

	"familytrack/internal/core/geo"
	"familytrack/internal/core/util"
)

type GeofenceKind string

const (
	KindSafeZone       GeofenceKind = "safe_zone"
	KindAlertZone      GeofenceKind = "alert_zone"
	KindRestrictedZone GeofenceKind = "restricted_zone"
)

const (
	MinRadiusMeters = 10.0
	MaxRadiusMeters = 10000.0
)

type Geofence struct {
	ID           string       `json:"id"`
	OwnerUserID  string       `json:"ownerUserId"`
	Name         string       `json:"name"`
	CenterLat    float64      `json:"centerLat"`
	CenterLng    float64      `json:"centerLng"`
	RadiusMeters float64      `json:"radiusMeters"`
	Kind         GeofenceKind `json:"kind"`
	AlertOnEnter bool         `json:"alertOnEnter"`
	AlertOnExit  bool         `json:"alertOnExit"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func NewGeofence(ownerUserID, name string, lat, lng, radius float64, kind GeofenceKind) *Geofence {
	now := time.Now().UTC()
	return &Geofence{
		ID:           util.GenerateID(),
		OwnerUserID:  ownerUserID,
		Name:         name,
		CenterLat:    lat,
		CenterLng:    lng,
		RadiusMeters: radius,
		Kind:         kind,
		AlertOnEnter: true,
		AlertOnExit:  true,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (g *Geofence) Center() geo.Point {
	return geo.Point{Lat: g.CenterLat, Lng: g.CenterLng}
}

// Contains reports whether p lies inside the fence (boundary inclusive).
func (g *Geofence) Contains(p geo.Point) bool {
	return geo.InCircle(p, g.Center(), g.RadiusMeters)
}

type Transition string

const (
	TransitionEntered   Transition = "entered"
	TransitionExited    Transition = "exited"
	TransitionUnchanged Transition = "unchanged"
)

// GeofenceMembership is the last recorded inside/outside state of a user for one fence.
// A missing or expired record means unknown, which is never the same as outside.
type GeofenceMembership struct {
	GeofenceID string    `json:"geofenceId"`
	UserID     string    `json:"userId"`
	Inside     bool      `json:"inside"`
	RecordedAt time.Time `json:"recordedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// GeofenceAlert records an emitted enter/exit transition.
type GeofenceAlert struct {
	ID           string     `json:"id"`
	GeofenceID   string     `json:"geofenceId"`
	GeofenceName string     `json:"geofenceName"`
	OwnerUserID  string     `json:"ownerUserId"`
	UserID       string     `json:"userId"`
	Transition   Transition `json:"transition"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	TriggeredAt  time.Time  `json:"triggeredAt"`
}

func NewGeofenceAlert(fence *Geofence, userID string, t Transition, pos CachedPosition) *GeofenceAlert {
	return &GeofenceAlert{
		ID:           util.GenerateID(),
		GeofenceID:   fence.ID,
		GeofenceName: fence.Name,
		OwnerUserID:  fence.OwnerUserID,
		UserID:       userID,
		Transition:   t,
		Latitude:     pos.Latitude,
		Longitude:    pos.Longitude,
		TriggeredAt:  pos.Timestamp,
	}
}
