// Package config loads and validates the relay configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile     = "config.yaml"
	DefaultInterval       = 10 * time.Minute
	DefaultDelivery       = "all"
	DefaultBearerTokenEnv = "TWITTER_BEARER_TOKEN"
	DefaultWebhookURLEnv  = "DISCORD_WEBHOOK_URL"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "10m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Watch    WatchConfig    `yaml:"watch"`
	Twitter  TwitterConfig  `yaml:"twitter"`
	Fallback FallbackConfig `yaml:"fallback"`
	Discord  DiscordConfig  `yaml:"discord"`
}

type WatchConfig struct {
	Handle   string   `yaml:"handle"`
	Interval Duration `yaml:"interval"`
	Keywords []string `yaml:"important_keywords"`
	Delivery string   `yaml:"delivery"` // "all" or "keyword_match"
}

type TwitterConfig struct {
	APIBase        string `yaml:"api_base"`
	BearerTokenEnv string `yaml:"bearer_token_env"`

	// Resolved from the env var at load time.
	BearerToken string `yaml:"-"`
}

type FallbackConfig struct {
	FeedURL string `yaml:"feed_url"`
}

type DiscordConfig struct {
	WebhookURLEnv string `yaml:"webhook_url_env"`

	// Resolved from the env var at load time.
	WebhookURL string `yaml:"-"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars,
// and validates. Missing credentials are fatal here, before the relay
// ever runs.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Watch.Interval.Duration == 0 {
		cfg.Watch.Interval.Duration = DefaultInterval
	}
	if cfg.Watch.Delivery == "" {
		cfg.Watch.Delivery = DefaultDelivery
	}
	if cfg.Twitter.BearerTokenEnv == "" {
		cfg.Twitter.BearerTokenEnv = DefaultBearerTokenEnv
	}
	if cfg.Discord.WebhookURLEnv == "" {
		cfg.Discord.WebhookURLEnv = DefaultWebhookURLEnv
	}
}

func resolveEnv(cfg *Config) {
	cfg.Twitter.BearerToken = os.Getenv(cfg.Twitter.BearerTokenEnv)
	cfg.Discord.WebhookURL = os.Getenv(cfg.Discord.WebhookURLEnv)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Watch.Handle) == "" {
		return errors.New("watch.handle is required")
	}
	if cfg.Watch.Interval.Duration <= 0 {
		return errors.New("watch.interval must be positive")
	}

	switch cfg.Watch.Delivery {
	case "all", "keyword_match":
		// valid
	default:
		return fmt.Errorf("watch.delivery: unknown mode %q (want all or keyword_match)", cfg.Watch.Delivery)
	}

	if cfg.Twitter.BearerToken == "" {
		return fmt.Errorf("twitter: env var %s is not set", cfg.Twitter.BearerTokenEnv)
	}
	if strings.TrimSpace(cfg.Fallback.FeedURL) == "" {
		return errors.New("fallback.feed_url is required")
	}
	if cfg.Discord.WebhookURL == "" {
		return fmt.Errorf("discord: env var %s is not set", cfg.Discord.WebhookURLEnv)
	}

	return nil
}
