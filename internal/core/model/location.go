package model

import (
	"time"

	"familytrack/internal/core/geo"
	"familytrack/internal/core/util"
)

// LocationSample is a single position report. Once appended to history it never changes.
type LocationSample struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLocationSample(userID string, lat, lon float64, ts time.Time) *LocationSample {
	return &LocationSample{
		ID:        util.GenerateID(),
		UserID:    userID,
		Latitude:  lat,
		Longitude: lon,
		Timestamp: ts.UTC(),
	}
}

func (s *LocationSample) Point() geo.Point {
	return geo.Point{Lat: s.Latitude, Lng: s.Longitude}
}

// Position projects the sample into the shape kept by the position cache.
func (s *LocationSample) Position() CachedPosition {
	return CachedPosition{
		UserID:    s.UserID,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Timestamp: s.Timestamp,
	}
}

// CachedPosition is the current location of a user. FreshUntil is set by the cache on write.
type CachedPosition struct {
	UserID     string    `json:"userId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  time.Time `json:"timestamp"`
	FreshUntil time.Time `json:"freshUntil"`
}

func (p CachedPosition) Point() geo.Point {
	return geo.Point{Lat: p.Latitude, Lng: p.Longitude}
}

// Fresh reports whether the position can still be used for comparisons.
func (p CachedPosition) Fresh(now time.Time) bool {
	return now.Before(p.FreshUntil)
}
