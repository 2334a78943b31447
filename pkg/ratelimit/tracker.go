package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for call-limit tracking.
var (
	callLimitUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopify_call_limit_used",
		Help: "Calls in the Shopify REST bucket as of the last response",
	})

	callLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopify_call_limit_throttles_total",
		Help: "Requests delayed because the call bucket was in the warning band",
	})

	callLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopify_call_limit_waits_total",
		Help: "Requests delayed until the call bucket drained below critical",
	})
)

// Tracker follows the shop's call bucket and delays requests near the limit.
type Tracker struct {
	store  StateStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a tracker. A nil store falls back to a MemoryStore.
func NewTracker(store StateStore, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// GetState returns the last observed state, or nil if none.
func (t *Tracker) GetState(ctx context.Context) (*CallLimitState, error) {
	return t.store.Load(ctx)
}

// UpdateFromHeaders records the bucket state carried by a response.
// Responses without the header leave the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	value := headers.Get(HeaderCallLimit)
	if value == "" {
		return nil
	}

	state, err := ParseCallLimit(value)
	if err != nil {
		return err
	}
	state.LastUpdate = t.now()

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}

	callLimitUsed.Set(float64(state.Used))

	event := t.logger.Debug()
	switch {
	case state.NeedsCriticalWait(state.LastUpdate):
		event = t.logger.Warn()
	case state.NeedsThrottling(state.LastUpdate):
		event = t.logger.Info()
	}
	event.
		Int("calls_used", state.Used).
		Int("bucket_size", state.Size).
		Msg("Shopify call limit state updated")

	return nil
}

// Delay returns how long the next request should wait.
func (t *Tracker) Delay(ctx context.Context) (time.Duration, error) {
	delay, _, err := t.decide(ctx)
	return delay, err
}

// Wait blocks for the delay returned by Delay, or until ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	delay, critical, err := t.decide(ctx)
	if err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}

	if critical {
		callLimitWaitsTotal.Inc()
		t.logger.Warn().Dur("delay", delay).Msg("Shopify call bucket full - waiting for it to drain")
	} else {
		callLimitThrottlesTotal.Inc()
		t.logger.Info().Dur("delay", delay).Msg("Shopify call bucket in warning band - throttling request")
	}

	return sleepWithContext(ctx, delay)
}

func (t *Tracker) decide(ctx context.Context) (time.Duration, bool, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("get call limit state: %w", err)
	}
	if state == nil {
		return 0, false, nil
	}
	now := t.now()
	return state.Delay(now), state.NeedsCriticalWait(now), nil
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
