package service

import (
	"context"

	"familytrack/internal/core/model"
)

// Publisher delivers realtime events to the subscribers of a family.
type Publisher interface {
	Publish(familyID string, event model.Event)
}

// Notifier hands a derived alert to the notification dispatcher.
type Notifier interface {
	Notify(ctx context.Context, notice model.Notice) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, model.Event) {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Notice) error { return nil }
