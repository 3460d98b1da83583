// Package worker runs scheduled work items with retry.
package worker

import (
	"math"
	"time"

	"familytrack/internal/core/util"
)

// Backoff returns the delay before the given retry (1 for the first retry).
type Backoff interface {
	Next(attempt int) time.Duration
}

// Exponential doubles the delay on every attempt starting at Base, capped at Max when set.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

func (b Exponential) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(b.Base) * math.Pow(2, float64(attempt-1)))
	if b.Max > 0 && (d > b.Max || d <= 0) {
		return b.Max
	}
	return d
}

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 2 * time.Second
)

// Job is a scheduled work item. It is not run before NotBefore; a failed run is retried
// with Backoff until Attempts reaches MaxAttempts.
type Job struct {
	ID          string
	Kind        string
	Payload     interface{}
	NotBefore   time.Time
	Attempts    int
	MaxAttempts int
	Backoff     Backoff
	LastError   error
}

// NewJob builds a job due immediately with the default retry policy.
func NewJob(kind string, payload interface{}) *Job {
	return &Job{
		ID:          util.GenerateID(),
		Kind:        kind,
		Payload:     payload,
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     Exponential{Base: DefaultBackoffBase},
	}
}

// jobQueue is a min-heap on NotBefore.
type jobQueue []*Job

func (q jobQueue) Len() int           { return len(q) }
func (q jobQueue) Less(i, j int) bool { return q[i].NotBefore.Before(q[j].NotBefore) }
func (q jobQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *jobQueue) Push(x interface{}) {
	*q = append(*q, x.(*Job))
}

func (q *jobQueue) Pop() interface{} {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return job
}
