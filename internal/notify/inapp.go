package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"familytrack/internal/cache"
	"familytrack/internal/core/model"
)

const inboxTTL = 24 * time.Hour

// InboxMessage is an in-app notification as stored for and returned to a user.
type InboxMessage struct {
	ID        string           `json:"id"`
	Type      model.NoticeType `json:"type"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Priority  string           `json:"priority"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

// InAppChannel keeps a short-lived per-user inbox in the cache.
type InAppChannel struct {
	store cache.Store
}

func NewInAppChannel(store cache.Store) *InAppChannel {
	return &InAppChannel{store: store}
}

func (c *InAppChannel) Name() string { return ChannelInApp }

func inboxKey(userID string) string {
	return "user:" + userID + ":messages"
}

func (c *InAppChannel) Send(ctx context.Context, recipients []Recipient, content Content) error {
	data, err := json.Marshal(InboxMessage{
		ID:        content.ID,
		Type:      content.Type,
		Title:     content.Title,
		Content:   content.Body,
		Priority:  content.Priority,
		Timestamp: content.CreatedAt,
	})
	if err != nil {
		return err
	}

	for _, r := range recipients {
		if err := c.store.Push(ctx, inboxKey(r.UserID), data, inboxTTL); err != nil {
			return fmt.Errorf("inbox %s: %w", r.UserID, err)
		}
	}
	return nil
}

// Inbox returns up to limit messages for userID, newest first.
func (c *InAppChannel) Inbox(ctx context.Context, userID string, limit int) ([]InboxMessage, error) {
	items, err := c.store.Range(ctx, inboxKey(userID), limit)
	if err != nil {
		return nil, err
	}

	messages := make([]InboxMessage, 0, len(items))
	for _, item := range items {
		var m InboxMessage
		if err := json.Unmarshal(item, &m); err != nil {
			log.Printf("[notify] skipping unreadable inbox entry for %s: %v", userID, err)
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}
