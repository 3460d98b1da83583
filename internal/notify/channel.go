// Package notify delivers derived alerts to family members over pluggable channels.
package notify

import (
	"context"
	"sort"
	"time"

	"familytrack/internal/core/model"
)

const (
	ChannelKakao = "kakao"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
	ChannelInApp = "in_app"
)

type Recipient struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

// Content is the channel-independent body of a notification.
type Content struct {
	ID            string           `json:"id"`
	Type          model.NoticeType `json:"type"`
	SubjectUserID string           `json:"subjectUserId"`
	Title         string           `json:"title"`
	Body          string           `json:"body"`
	Priority      string           `json:"priority"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// Channel sends content to recipients. A returned error makes the delivery retryable.
type Channel interface {
	Name() string
	Send(ctx context.Context, recipients []Recipient, content Content) error
}

// Registry selects channels by name.
type Registry struct {
	channels map[string]Channel
}

func NewRegistry(channels ...Channel) *Registry {
	r := &Registry{channels: make(map[string]Channel)}
	for _, ch := range channels {
		r.Register(ch)
	}
	return r
}

func (r *Registry) Register(ch Channel) {
	r.channels[ch.Name()] = ch
}

func (r *Registry) Get(name string) (Channel, bool) {
	ch, ok := r.channels[name]
	return ch, ok
}

// Names lists the registered channels in a stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
