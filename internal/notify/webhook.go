package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookChannel forwards notifications as JSON to an external gateway, e.g. an SMS or push relay.
type WebhookChannel struct {
	name   string
	url    string
	client *http.Client
}

func NewWebhookChannel(name, url string) *WebhookChannel {
	return &WebhookChannel{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *WebhookChannel) Name() string { return c.name }

type webhookPayload struct {
	Channel    string      `json:"channel"`
	Recipients []Recipient `json:"recipients"`
	Content    Content     `json:"content"`
}

func (c *WebhookChannel) Send(ctx context.Context, recipients []Recipient, content Content) error {
	body, err := json.Marshal(webhookPayload{Channel: c.name, Recipients: recipients, Content: content})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", content.ID)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s webhook returned %d", c.name, resp.StatusCode)
	}
	return nil
}
