package repricer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/shopify-repricer/pkg/client"
	"github.com/Sternrassler/shopify-repricer/pkg/logging"
	"github.com/Sternrassler/shopify-repricer/pkg/pricing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Outcome labels for repricer_variants_total.
const (
	OutcomeUpdated     = "updated"
	OutcomeUnchanged   = "unchanged"
	OutcomeMissingCost = "skipped_missing_cost"
	OutcomeInvalidCost = "skipped_invalid_cost"
	OutcomeFailed      = "failed"
	OutcomeDryRun      = "dry_run"
)

var variantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "repricer_variants_total",
	Help: "Variants processed by the repricer by outcome",
}, []string{"outcome"})

// PriceUpdater writes a variant's price back to the store.
type PriceUpdater interface {
	UpdateVariantPrice(ctx context.Context, variantID int64, price string) (*client.Variant, error)
}

// Summary counts what a run did to each variant.
type Summary struct {
	Fetched        int
	Updated        int
	Unchanged      int
	SkippedMissing int
	SkippedInvalid int
	Failed         int
	WouldUpdate    int // dry run only

	// Errors holds one entry per skipped or failed variant.
	Errors []error
}

// Skipped returns the number of variants without a usable cost.
func (s Summary) Skipped() int {
	return s.SkippedMissing + s.SkippedInvalid
}

// Applier reprices variants one at a time.
type Applier struct {
	updater PriceUpdater
	calc    pricing.Calculator
	dryRun  bool
	logger  zerolog.Logger
}

// NewApplier creates an applier. With dryRun set, no price is written.
func NewApplier(updater PriceUpdater, calc pricing.Calculator, dryRun bool) *Applier {
	return &Applier{
		updater: updater,
		calc:    calc,
		dryRun:  dryRun,
		logger:  logging.NewLogger("applier"),
	}
}

// Apply reprices each variant in order. A variant that cannot be priced or
// written is logged and counted, and the loop moves on. The only error
// returned is ctx's, when the run is cancelled part way.
func (a *Applier) Apply(ctx context.Context, variants []client.Variant) (Summary, error) {
	summary := Summary{Fetched: len(variants)}

	for _, v := range variants {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		a.applyOne(ctx, v, &summary)
	}
	return summary, nil
}

func (a *Applier) applyOne(ctx context.Context, v client.Variant, summary *Summary) {
	logger := a.logger.With().
		Int64("variant_id", v.ID).
		Int64("product_id", v.ProductID).
		Logger()

	newPrice, err := a.calc.Calculate(v.Cost)
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrMissingCost):
			summary.SkippedMissing++
			a.record(summary, OutcomeMissingCost, &ValidationError{VariantID: v.ID, Reason: "missing cost", Err: err})
			logger.Warn().Msg("Skipped: missing cost")
		default:
			summary.SkippedInvalid++
			a.record(summary, OutcomeInvalidCost, &ValidationError{VariantID: v.ID, Reason: "invalid cost", Err: err})
			logger.Warn().RawJSON("cost", v.Cost).Msg("Skipped: invalid cost")
		}
		return
	}

	current, err := pricing.ParsePrice(v.Price.String())
	if err != nil {
		summary.Failed++
		a.record(summary, OutcomeFailed, &ValidationError{VariantID: v.ID, Reason: "invalid current price", Err: err})
		logger.Error().Err(err).Str("price", v.Price.String()).Msg("Cannot parse current price")
		return
	}

	logger = logger.With().
		Str("price", v.Price.String()).
		Str("new_price", pricing.FormatPrice(newPrice)).
		Logger()

	if !pricing.NeedsUpdate(current, newPrice) {
		summary.Unchanged++
		variantsTotal.WithLabelValues(OutcomeUnchanged).Inc()
		logger.Info().Msg("Price unchanged")
		return
	}

	if a.dryRun {
		summary.WouldUpdate++
		variantsTotal.WithLabelValues(OutcomeDryRun).Inc()
		logger.Info().Msg("Dry run: would update price")
		return
	}

	if _, err := a.updater.UpdateVariantPrice(ctx, v.ID, pricing.FormatPrice(newPrice)); err != nil {
		summary.Failed++
		a.record(summary, OutcomeFailed, fmt.Errorf("update variant %d: %w", v.ID, err))

		event := logger.Error().Err(err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			event = event.Int("status", apiErr.StatusCode).Str("error_class", string(apiErr.ErrorClass))
		}
		event.Msg("Failed to update price")
		return
	}

	summary.Updated++
	variantsTotal.WithLabelValues(OutcomeUpdated).Inc()
	logger.Info().Msg("Updated price")
}

func (a *Applier) record(summary *Summary, outcome string, err error) {
	summary.Errors = append(summary.Errors, err)
	variantsTotal.WithLabelValues(outcome).Inc()
}
