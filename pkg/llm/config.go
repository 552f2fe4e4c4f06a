package llm

import (
	"log/slog"
	"time"
)

// Defaults for remote classifiers.
const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 30 * time.Second
)

// Config holds classifier configuration.
type Config struct {
	APIKey      string
	AccessToken string
	Model       string
	Timeout     time.Duration
	Temperature float32
	Logger      *slog.Logger
}

// DefaultConfig returns a Config with defaults applied and no credentials.
func DefaultConfig() Config {
	return Config{
		Model:       DefaultModel,
		Timeout:     DefaultTimeout,
		Temperature: 0.7,
	}
}

// Option configures a classifier.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithAccessToken sets an OAuth2 bearer token, used when no API key is set.
func WithAccessToken(token string) Option {
	return func(c *Config) { c.AccessToken = token }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) {
		if model != "" {
			c.Model = model
		}
	}
}

// WithTimeout bounds each Classify call.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func applyOptions(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}
