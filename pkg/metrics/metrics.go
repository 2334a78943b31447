// Package metrics gathers the Prometheus metrics shared by the repricer and
// pushes them to a Pushgateway when a run ends.
// All metrics are defined in their respective packages (client, ratelimit,
// repricer) to keep those packages self-contained.
//
// A repricer run is a short-lived batch job, so nothing is served for
// scraping; the final values are pushed once instead.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Gatherer is what Push sends. The promauto metrics of the client,
// ratelimit and repricer packages all land in the default registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// DefaultJob is the Pushgateway job name for repricer runs.
const DefaultJob = "shopify_repricer"

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - shopify_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - shopify_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - shopify_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - shopify_retries_total{error_class} (Counter): Retry attempts (only rate_limit is retried)
//   - shopify_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - shopify_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Call Limit Metrics (pkg/ratelimit):
//   - shopify_call_limit_used (Gauge): Calls in the REST bucket as of the last response
//   - shopify_call_limit_throttles_total (Counter): Requests delayed in the warning band
//   - shopify_call_limit_waits_total (Counter): Requests delayed until the bucket drained
//
// Repricer Metrics (pkg/repricer):
//   - repricer_variants_total{outcome} (Counter): Variants by outcome (updated, unchanged,
//     skipped_missing_cost, skipped_invalid_cost, failed, dry_run)
//
// Example Prometheus Queries:
//
//   # Variants written in the last run
//   repricer_variants_total{outcome="updated"}
//
//   # Share of variants without a usable cost
//   sum(repricer_variants_total{outcome=~"skipped_.*"}) / sum(repricer_variants_total)
//
//   # Throttling pressure
//   shopify_call_limit_throttles_total + shopify_call_limit_waits_total

// Push sends every gathered metric to the Pushgateway at gatewayURL under
// job, grouped by store. Existing metrics for the same grouping are replaced.
func Push(ctx context.Context, gatewayURL, job, store string) error {
	if gatewayURL == "" {
		return errors.New("pushgateway url is required")
	}
	if _, err := url.ParseRequestURI(gatewayURL); err != nil {
		return fmt.Errorf("invalid pushgateway url: %w", err)
	}
	if job == "" {
		job = DefaultJob
	}

	pusher := push.New(gatewayURL, job).Gatherer(Gatherer)
	if store != "" {
		pusher = pusher.Grouping("store", store)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
