package repricer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/shopify-repricer/internal/testutil"
	"github.com/Sternrassler/shopify-repricer/pkg/client"
	"github.com/Sternrassler/shopify-repricer/pkg/config"
	"github.com/Sternrassler/shopify-repricer/pkg/ratelimit"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func testConfig() config.Config {
	return config.Config{
		Shopify: config.Shopify{
			APIKey:     "key",
			Password:   "secret",
			StoreName:  "acme",
			APIVersion: "2024-07",
		},
		PriceMultiplier: decimal.NewFromInt(2),
	}
}

func fastRetry() SessionOption {
	return WithRetry(client.RetryConfig{
		MaxAttempts:    3,
		DefaultBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	})
}

func TestNewSession(t *testing.T) {
	c, err := NewSession(testConfig())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if got, want := c.BaseURL(), "https://acme.myshopify.com/admin/api/2024-07"; got != want {
		t.Errorf("BaseURL() = %q, want %q", got, want)
	}
	if c.RequestInterval() != 0 {
		t.Errorf("RequestInterval() = %v, want the configured 0", c.RequestInterval())
	}
}

func TestNewSession_ConnectionError(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing key", func(c *config.Config) { c.Shopify.APIKey = "" }},
		{"missing password", func(c *config.Config) { c.Shopify.Password = "" }},
		{"missing store", func(c *config.Config) { c.Shopify.StoreName = "" }},
		{"missing version", func(c *config.Config) { c.Shopify.APIVersion = "" }},
		{"store with scheme", func(c *config.Config) { c.Shopify.StoreName = "https://acme.myshopify.com" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := NewSession(cfg)
			var connErr *ConnectionError
			if !errors.As(err, &connErr) {
				t.Errorf("error = %v, want *ConnectionError", err)
			}
		})
	}
}

func TestRun(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()

	mock.SetPage(1, "["+
		testutil.ProductJSON(1,
			testutil.VariantJSON(11, 1, "19.99", "10.0"),
			testutil.VariantJSON(12, 1, "20", "10.0"),
		)+","+
		testutil.ProductJSON(2,
			testutil.VariantJSON(21, 2, "5.00", ""),
			testutil.VariantJSON(22, 2, "5.00", `"abc"`),
		)+"]")
	mock.SetPage(2, "["+testutil.ProductJSON(3, testutil.VariantJSON(31, 3, "1.00", "3.333"))+"]")

	summary, err := Run(context.Background(), testConfig(), WithBaseURL(mock.URL()), fastRetry())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []testutil.PriceUpdate{
		{VariantID: 11, Price: "20.00"},
		{VariantID: 31, Price: "6.67"},
	}
	if diff := cmp.Diff(want, mock.GetUpdates()); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, mock.GetProductPages()); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}

	if summary.Fetched != 5 || summary.Updated != 2 || summary.Unchanged != 1 ||
		summary.SkippedMissing != 1 || summary.SkippedInvalid != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRun_FetchError(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()

	mock.Enqueue("GET products", testutil.MockResponse{StatusCode: 200, Body: `{"products":[` + testutil.ProductJSON(1, testutil.VariantJSON(11, 1, "1.00", "5")) + `]}`})
	mock.Enqueue("GET products", testutil.NewServerErrorResponse())

	_, err := Run(context.Background(), testConfig(), WithBaseURL(mock.URL()), fastRetry())

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fetchErr.Page != 2 {
		t.Errorf("Page = %d, want 2", fetchErr.Page)
	}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorClass != client.ErrorClassServer {
		t.Errorf("error should wrap the server APIError, got %v", err)
	}
	if len(mock.GetUpdates()) != 0 {
		t.Error("no update may be written after a fetch failure")
	}
}

func TestRun_DryRun(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()
	mock.SetPage(1, "["+testutil.ProductJSON(1, testutil.VariantJSON(11, 1, "1.00", "5"))+"]")

	cfg := testConfig()
	cfg.DryRun = true

	summary, err := Run(context.Background(), cfg, WithBaseURL(mock.URL()), fastRetry())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.WouldUpdate != 1 || len(mock.GetUpdates()) != 0 {
		t.Errorf("summary = %+v, updates = %v", summary, mock.GetUpdates())
	}
}

func TestRun_PacesRequests(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()
	mock.SetPage(1, "["+testutil.ProductJSON(1, testutil.VariantJSON(11, 1, "1.00", "5"))+"]")
	mock.SetPage(2, "["+testutil.ProductJSON(2, testutil.VariantJSON(21, 2, "1.00", "5"))+"]")

	cfg := testConfig()
	cfg.RequestInterval = 25 * time.Millisecond

	start := time.Now()
	if _, err := Run(context.Background(), cfg, WithBaseURL(mock.URL()), fastRetry()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	elapsed := time.Since(start)

	// 3 list requests and 2 writes: the first call is free, the other 4 wait.
	if n := mock.GetRequestCount(); n != 5 {
		t.Errorf("requests = %d, want 5", n)
	}
	if elapsed < 4*cfg.RequestInterval {
		t.Errorf("elapsed = %v, want >= %v", elapsed, 4*cfg.RequestInterval)
	}
}

func TestRun_SharedStateStore(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()
	mock.SetCallLimit("5/40")

	store := ratelimit.NewMemoryStore()
	if _, err := Run(context.Background(), testConfig(), WithBaseURL(mock.URL()), WithStateStore(store)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state == nil || state.Used != 5 || state.Size != 40 {
		t.Errorf("state = %+v, want 5/40", state)
	}
}
