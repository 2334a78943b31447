// Command repricer recomputes every variant price of a Shopify store from
// the variant's cost and writes back the prices that changed.
//
// Configuration comes from the environment (optionally a .env file). The
// process always exits 0; problems are reported through the log.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/shopify-repricer/pkg/config"
	"github.com/Sternrassler/shopify-repricer/pkg/logging"
	"github.com/Sternrassler/shopify-repricer/pkg/metrics"
	"github.com/Sternrassler/shopify-repricer/pkg/ratelimit"
	"github.com/Sternrassler/shopify-repricer/pkg/repricer"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// pushTimeout bounds the final metrics push.
const pushTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run(ctx)
}

// run performs one repricing pass. Every failure is logged and swallowed.
func run(ctx context.Context) {
	logging.Setup(logging.DefaultConfig())
	log.Info().Msg("Repricer started")
	defer func() { log.Info().Msg("Repricer finished") }()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return
	}
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	var opts []repricer.SessionOption
	if cfg.RedisURL != "" {
		redisClient, err := newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable - tracking call limit in process")
		} else {
			defer redisClient.Close()
			opts = append(opts, repricer.WithStateStore(ratelimit.NewRedisStore(redisClient, cfg.Shopify.StoreName)))
			log.Info().Msg("Sharing call limit state through Redis")
		}
	}

	if _, err := repricer.Run(ctx, cfg, opts...); err != nil {
		logRunError(err)
	}

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if err := metrics.Push(pushCtx, cfg.PushgatewayURL, metrics.DefaultJob, cfg.Shopify.StoreName); err != nil {
			log.Warn().Err(err).Msg("Failed to push metrics")
		}
	}
}

func newRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// logRunError reports why a run stopped before or while applying prices.
func logRunError(err error) {
	var (
		connErr  *repricer.ConnectionError
		fetchErr *repricer.FetchError
	)
	switch {
	case errors.As(err, &connErr):
		log.Error().Err(err).Msg("Could not connect to Shopify - run aborted")
	case errors.As(err, &fetchErr):
		log.Error().Err(err).Int("page", fetchErr.Page).Msg("Could not fetch catalog - run aborted")
	case errors.Is(err, context.Canceled):
		log.Warn().Err(err).Msg("Run cancelled")
	default:
		log.Error().Err(err).Msg("Run failed")
	}
}
