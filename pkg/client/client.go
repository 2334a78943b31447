// Package client provides a Shopify Admin REST client with call pacing,
// call-limit tracking, and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/shopify-repricer/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for Shopify client operations.
var (
	shopifyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_requests_total",
		Help: "Total Shopify Admin API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	shopifyRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopify_request_duration_seconds",
		Help:    "Shopify Admin API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	shopifyErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_errors_total",
		Help: "Total Shopify Admin API errors by class",
	}, []string{"class"})
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 32 << 20

// Client is a Shopify Admin REST client bound to one store.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	pacer      *ratelimit.Pacer
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Store credentials and address.
	APIKey     string
	Password   string
	StoreName  string // subdomain, "acme" for acme.myshopify.com
	APIVersion string // e.g. "2024-07"

	// BaseURL overrides https://{store}.myshopify.com/admin/api/{version}.
	BaseURL string

	UserAgent string
	Timeout   time.Duration

	// RequestInterval is the minimum spacing between outbound calls.
	RequestInterval time.Duration

	// StateStore holds call-limit state (nil = in-process).
	StateStore ratelimit.StateStore

	Retry RetryConfig

	// HTTPClient replaces the default client (Timeout is then ignored).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration for a store.
func DefaultConfig(apiKey, password, storeName, apiVersion string) Config {
	return Config{
		APIKey:          apiKey,
		Password:        password,
		StoreName:       storeName,
		APIVersion:      apiVersion,
		UserAgent:       "shopify-repricer/0.1.0",
		Timeout:         30 * time.Second,
		RequestInterval: ratelimit.DefaultInterval,
		Retry:           DefaultRetryConfig(),
	}
}

// New creates a client. It performs no network I/O.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("api key is required")
	}
	if strings.TrimSpace(cfg.Password) == "" {
		return nil, errors.New("api password is required")
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		return nil, errors.New("api version is required")
	}

	base := cfg.BaseURL
	if base == "" {
		store, err := normalizeStoreName(cfg.StoreName)
		if err != nil {
			return nil, err
		}
		base = fmt.Sprintf("https://%s.myshopify.com/admin/api/%s", store, url.PathEscape(strings.TrimSpace(cfg.APIVersion)))
	}
	baseURL, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http(s), got %q", base)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = "shopify-repricer/0.1.0"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := log.With().Str("component", "shopify-client").Logger()

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		pacer:      ratelimit.NewPacer(cfg.RequestInterval),
		tracker:    ratelimit.NewTracker(cfg.StateStore, logger),
		config:     cfg,
		logger:     logger,
	}, nil
}

// normalizeStoreName accepts "acme" or "acme.myshopify.com".
func normalizeStoreName(name string) (string, error) {
	store := strings.ToLower(strings.TrimSpace(name))
	store = strings.TrimSuffix(store, ".myshopify.com")
	if store == "" {
		return "", errors.New("store name is required")
	}
	for _, r := range store {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return "", fmt.Errorf("invalid store name %q: want the myshopify.com subdomain", name)
		}
	}
	return store, nil
}

// BaseURL returns the admin API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// do performs one logical API call: pacing, call-limit wait, request, 429
// retries. A 2xx body is decoded into out when out is non-nil. endpoint is a
// low-cardinality label for metrics and logs.
func (c *Client) do(ctx context.Context, method, endpoint, path string, query url.Values, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	startTime := time.Now()
	defer func() {
		shopifyRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var respBody []byte
	err := retryWithBackoff(ctx, c.config.Retry, func() error {
		var attemptErr error
		respBody, attemptErr = c.attempt(ctx, method, endpoint, path, query, body)
		return attemptErr
	})
	if err != nil {
		return err
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// attempt sends a single HTTP request and returns the body of a 2xx response.
func (c *Client) attempt(ctx context.Context, method, endpoint, path string, query url.Values, body []byte) ([]byte, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pacing: %w", err)
	}
	if err := c.tracker.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn().Err(err).Msg("Call limit check failed - continuing without delay")
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Str("query", query.Encode()).
		Msg("Executing Shopify request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		shopifyErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		shopifyRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if err := c.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update call limit from headers")
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		shopifyErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read response body", Err: err}
	}

	shopifyRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		shopifyErrorsTotal.WithLabelValues(string(errClass)).Inc()

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    errorMessage(resp.Status, respBody),
		}
		if errClass == ErrorClassRateLimit {
			apiErr.RetryAfter = parseRetryAfter(resp.Header)
		}

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Shopify request error")
		return nil, apiErr
	}

	return respBody, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.SetBasicAuth(c.config.APIKey, c.config.Password)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// RequestInterval returns the minimum spacing between outbound calls.
func (c *Client) RequestInterval() time.Duration {
	return c.pacer.Interval()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
