package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultKakaoBaseURL = "https://kapi.kakao.com"
	kakaoMemoPath       = "/v2/api/talk/memo/default/send"
)

// KakaoChannel sends text memos through the Kakao talk API, one request per recipient.
type KakaoChannel struct {
	baseURL string
	token   string
	linkURL string
	spacing time.Duration
	client  *http.Client
}

func NewKakaoChannel(baseURL, token, linkURL string) *KakaoChannel {
	if baseURL == "" {
		baseURL = DefaultKakaoBaseURL
	}
	return &KakaoChannel{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		linkURL: linkURL,
		spacing: 100 * time.Millisecond,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *KakaoChannel) Name() string { return ChannelKakao }

type kakaoLink struct {
	WebURL       string `json:"web_url,omitempty"`
	MobileWebURL string `json:"mobile_web_url,omitempty"`
}

type kakaoTemplate struct {
	ObjectType  string    `json:"object_type"`
	Text        string    `json:"text"`
	Link        kakaoLink `json:"link"`
	ButtonTitle string    `json:"button_title,omitempty"`
}

// Send succeeds when at least one recipient received the memo.
func (c *KakaoChannel) Send(ctx context.Context, recipients []Recipient, content Content) error {
	if c.token == "" {
		return errors.New("kakao access token not configured")
	}

	template, err := json.Marshal(kakaoTemplate{
		ObjectType:  "text",
		Text:        fmt.Sprintf("[%s] %s", content.Title, content.Body),
		Link:        kakaoLink{WebURL: c.linkURL, MobileWebURL: c.linkURL},
		ButtonTitle: "Open app",
	})
	if err != nil {
		return err
	}

	var sent int
	var errs []error
	for i, r := range recipients {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.spacing):
			}
		}
		if err := c.post(ctx, string(template)); err != nil {
			errs = append(errs, fmt.Errorf("recipient %s: %w", r.UserID, err))
			continue
		}
		sent++
	}

	if len(errs) > 0 {
		log.Printf("[notify] kakao delivered %d/%d: %v", sent, len(recipients), errors.Join(errs...))
	}
	if sent == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (c *KakaoChannel) post(ctx context.Context, template string) error {
	form := url.Values{"template_object": {template}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+kakaoMemoPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kakao API error: %d", resp.StatusCode)
	}
	return nil
}
