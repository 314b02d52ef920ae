package cli

import (
	"fmt"

	"github.com/ppiankov/tweetrelay/internal/config"
	"github.com/ppiankov/tweetrelay/internal/notify"
	"github.com/ppiankov/tweetrelay/internal/relay"
	"github.com/ppiankov/tweetrelay/internal/source"
)

// buildRelay wires sources and the notifier from config into a relay.
func buildRelay(cfg *config.Config) (*relay.Relay, error) {
	tw, err := source.NewTwitter(cfg.Twitter.BearerToken, cfg.Twitter.APIBase)
	if err != nil {
		return nil, fmt.Errorf("create twitter source: %w", err)
	}

	feed, err := source.NewFeed(cfg.Fallback.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("create feed source: %w", err)
	}

	webhook, err := notify.NewWebhook(cfg.Discord.WebhookURL, cfg.Watch.Handle)
	if err != nil {
		return nil, fmt.Errorf("create discord notifier: %w", err)
	}

	rly, err := relay.New(cfg.Watch.Handle, tw, feed, webhook, relay.Options{
		Keywords: cfg.Watch.Keywords,
		Policy:   relay.DeliveryPolicy(cfg.Watch.Delivery),
	})
	if err != nil {
		return nil, fmt.Errorf("create relay: %w", err)
	}
	return rly, nil
}
