package repricer

import (
	"github.com/Sternrassler/shopify-repricer/pkg/client"
	"github.com/Sternrassler/shopify-repricer/pkg/config"
	"github.com/Sternrassler/shopify-repricer/pkg/ratelimit"
)

// SessionOption adjusts the client configuration built by NewSession.
type SessionOption func(*client.Config)

// WithStateStore shares call-limit state through store.
func WithStateStore(store ratelimit.StateStore) SessionOption {
	return func(c *client.Config) {
		c.StateStore = store
	}
}

// WithBaseURL points the session at a different admin API root.
func WithBaseURL(baseURL string) SessionOption {
	return func(c *client.Config) {
		c.BaseURL = baseURL
	}
}

// WithRetry replaces the 429 retry policy.
func WithRetry(retry client.RetryConfig) SessionOption {
	return func(c *client.Config) {
		c.Retry = retry
	}
}

// NewSession builds the authenticated store handle every later step uses.
// It performs no network I/O; credentials are first exercised by the
// catalog fetch.
func NewSession(cfg config.Config, opts ...SessionOption) (*client.Client, error) {
	clientCfg := client.DefaultConfig(
		cfg.Shopify.APIKey,
		cfg.Shopify.Password,
		cfg.Shopify.StoreName,
		cfg.Shopify.APIVersion,
	)
	clientCfg.RequestInterval = cfg.RequestInterval
	if cfg.UserAgent != "" {
		clientCfg.UserAgent = cfg.UserAgent
	}
	for _, opt := range opts {
		opt(&clientCfg)
	}

	c, err := client.New(clientCfg)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return c, nil
}
