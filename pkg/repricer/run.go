// Package repricer recomputes Shopify variant prices from their cost and
// writes back the ones that changed.
//
// A run is strictly sequential: open a session, list the whole catalog, then
// walk the variants one by one. Session and listing failures end the run;
// per-variant problems are logged and counted.
package repricer

import (
	"context"
	"time"

	"github.com/Sternrassler/shopify-repricer/pkg/config"
	"github.com/Sternrassler/shopify-repricer/pkg/logging"
	"github.com/Sternrassler/shopify-repricer/pkg/pricing"
)

// Run executes one repricing pass over the store described by cfg.
// It returns a *ConnectionError or *FetchError when the run could not get
// as far as applying prices.
func Run(ctx context.Context, cfg config.Config, opts ...SessionOption) (Summary, error) {
	logger := logging.RunLogger(cfg.Shopify.StoreName, cfg.DryRun)
	start := time.Now()

	session, err := NewSession(cfg, opts...)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize Shopify session")
		return Summary{}, err
	}
	defer session.Close()

	logger.Info().
		Str("api_version", cfg.Shopify.APIVersion).
		Dur("request_interval", session.RequestInterval()).
		Msg("Shopify session initialized")

	variants, err := FetchVariants(ctx, session)
	if err != nil {
		return Summary{}, err
	}

	applier := NewApplier(session, pricing.NewCalculator(cfg.PriceMultiplier), cfg.DryRun)
	summary, err := applier.Apply(ctx, variants)

	event := logger.Info()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.
		Int("fetched", summary.Fetched).
		Int("updated", summary.Updated).
		Int("unchanged", summary.Unchanged).
		Int("skipped", summary.Skipped()).
		Int("failed", summary.Failed).
		Int("would_update", summary.WouldUpdate).
		Dur("duration", time.Since(start)).
		Msg("Repricing complete")

	return summary, err
}
