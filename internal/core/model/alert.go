package model

import (
	"time"

	"familytrack/internal/core/util"
)

type SpeedAlert struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	SpeedMps  float64   `json:"speedMps"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSpeedAlert(sample *LocationSample, speed float64) *SpeedAlert {
	return &SpeedAlert{
		ID:        util.GenerateID(),
		UserID:    sample.UserID,
		SpeedMps:  speed,
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Timestamp: sample.Timestamp,
	}
}

// InactivityAlert is raised once per continuous silent period of a user.
type InactivityAlert struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	DetectedAt time.Time `json:"detectedAt"`
}

func NewInactivityAlert(userID string, lastSeen, detected time.Time) *InactivityAlert {
	return &InactivityAlert{
		ID:         util.GenerateID(),
		UserID:     userID,
		LastSeenAt: lastSeen,
		DetectedAt: detected,
	}
}

// ProximityEvent is a one-shot report that two family members are close to each other.
type ProximityEvent struct {
	UserID         string    `json:"userId"`
	OtherUserID    string    `json:"otherUserId"`
	DistanceMeters float64   `json:"distanceMeters"`
	DetectedAt     time.Time `json:"detectedAt"`
}
