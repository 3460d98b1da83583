// Package tracker holds the per-user location state machines: the position cache, geofence
// membership, proximity, speed and inactivity detection.
//
// All shared state lives in a cache.Store and is mutated only through per-key atomic
// operations, so updates for different users never serialize on a common lock.
package tracker

import "time"

// Options tunes windows and thresholds. Zero fields fall back to DefaultOptions.
type Options struct {
	Freshness           time.Duration
	Retention           time.Duration
	MembershipTTL       time.Duration
	PreviousTTL         time.Duration
	ProximityMeters     float64
	ProximityDebounce   bool
	SpeedThresholdMps   float64
	InactivityThreshold time.Duration
	SweepInterval       time.Duration
	// MaxClockSkew bounds how far ahead of receipt a client timestamp may be.
	MaxClockSkew time.Duration
}

func DefaultOptions() Options {
	return Options{
		Freshness:           300 * time.Second,
		Retention:           24 * time.Hour,
		MembershipTTL:       time.Hour,
		PreviousTTL:         300 * time.Second,
		ProximityMeters:     100,
		SpeedThresholdMps:   30,
		InactivityThreshold: 10 * time.Minute,
		SweepInterval:       60 * time.Second,
		MaxClockSkew:        time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Freshness <= 0 {
		o.Freshness = d.Freshness
	}
	if o.Retention <= 0 {
		o.Retention = d.Retention
	}
	if o.Retention < o.Freshness {
		o.Retention = o.Freshness
	}
	if o.MembershipTTL <= 0 {
		o.MembershipTTL = d.MembershipTTL
	}
	if o.PreviousTTL <= 0 {
		o.PreviousTTL = d.PreviousTTL
	}
	if o.ProximityMeters <= 0 {
		o.ProximityMeters = d.ProximityMeters
	}
	if o.SpeedThresholdMps <= 0 {
		o.SpeedThresholdMps = d.SpeedThresholdMps
	}
	if o.InactivityThreshold <= 0 {
		o.InactivityThreshold = d.InactivityThreshold
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = d.SweepInterval
	}
	if o.MaxClockSkew <= 0 {
		o.MaxClockSkew = d.MaxClockSkew
	}
	return o
}

// Cache key layout.
const (
	positionPrefix   = "location:"
	previousPrefix   = "prev_location:"
	membershipPrefix = "geofence:"
	proximityPrefix  = "proximity:"
	inactivePrefix   = "inactive_alerted:"
)
