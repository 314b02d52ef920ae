// Package notify delivers posts to a Discord channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ppiankov/tweetrelay/internal/source"
)

const (
	webhookTimeout    = 15 * time.Second
	webhookMaxErrBody = 1024

	colorAlert   = 0xED4245 // discord red
	colorDefault = 0x5865F2 // discord blurple
)

// Webhook posts to a Discord incoming webhook. Messages are rate
// limited per webhook to stay under Discord's limits when a post
// carries several media attachments.
type Webhook struct {
	url     string
	handle  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhook creates a Discord webhook notifier. handle is the watched
// account name, used in the embed title.
func NewWebhook(webhookURL, handle string) (*Webhook, error) {
	if strings.TrimSpace(webhookURL) == "" {
		return nil, errors.New("notify: webhook url is required")
	}
	return &Webhook{
		url:     webhookURL,
		handle:  handle,
		client:  &http.Client{Timeout: webhookTimeout},
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}, nil
}

type webhookMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	URL         string      `json:"url,omitempty"`
	Color       int         `json:"color,omitempty"`
	Footer      *embedText  `json:"footer,omitempty"`
	Image       *embedImage `json:"image,omitempty"`
}

type embedText struct {
	Text string `json:"text"`
}

type embedImage struct {
	URL string `json:"url"`
}

// Deliver renders the post as an embed. Highlighted posts ping
// @everyone first and use the alert color. The first media URL becomes
// the embed image; the rest go out as follow-up messages so the channel
// still previews them.
func (w *Webhook) Deliver(ctx context.Context, post *source.Post, highlighted bool) error {
	if post == nil {
		return errors.New("notify: nil post")
	}

	if highlighted {
		alert := webhookMessage{Content: fmt.Sprintf("@everyone important post from @%s", w.handle)}
		if err := w.send(ctx, alert); err != nil {
			return err
		}
	}

	e := embed{
		Title:       fmt.Sprintf("New post from @%s", w.handle),
		Description: post.Text,
		URL:         post.URL,
		Color:       colorDefault,
		Footer:      &embedText{Text: "posted " + post.CreatedAt},
	}
	if highlighted {
		e.Color = colorAlert
	}
	if len(post.Media) > 0 {
		e.Image = &embedImage{URL: post.Media[0]}
	}

	if err := w.send(ctx, webhookMessage{Embeds: []embed{e}}); err != nil {
		return err
	}

	if len(post.Media) > 1 {
		for _, u := range post.Media[1:] {
			if err := w.send(ctx, webhookMessage{Content: u}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Webhook) send(ctx context.Context, msg webhookMessage) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify: wait for rate limit: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, webhookMaxErrBody))
		return fmt.Errorf("notify: webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
