package model

import "time"

type EventType string

const (
	EventFamilyLocationUpdate EventType = "family_location_update"
	EventLocationResponse     EventType = "location_response"
	EventGeofenceTransition   EventType = "geofence_transition"
	EventProximity            EventType = "proximity"
	EventSpeedAlert           EventType = "speed_alert"
	EventInactivity           EventType = "inactivity"
	EventError                EventType = "error"
)

// Event is a realtime message delivered to family subscribers.
type Event struct {
	Type     EventType   `json:"type"`
	FamilyID string      `json:"familyId,omitempty"`
	UserID   string      `json:"userId,omitempty"`
	Data     interface{} `json:"data,omitempty"`

	// Origin is the connection that caused the event; it is skipped on broadcast.
	Origin string `json:"-"`
}

// LocationUpdate is the payload of family_location_update and location_response events.
type LocationUpdate struct {
	UserID    string    `json:"userId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

type NoticeType string

const (
	NoticeGeofence   NoticeType = "geofence"
	NoticeProximity  NoticeType = "proximity"
	NoticeSpeed      NoticeType = "speed"
	NoticeInactivity NoticeType = "inactivity"
)

// Notice is a derived alert handed to the notification dispatcher.
type Notice struct {
	Type      NoticeType `json:"type"`
	UserID    string     `json:"userId"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Priority  string     `json:"priority"` // low, medium, high, urgent
	CreatedAt time.Time  `json:"createdAt"`
}
