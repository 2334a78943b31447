package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// MaxPageSize is the largest page the Shopify REST listing endpoints serve.
const MaxPageSize = 250

// Config holds walker configuration.
type Config struct {
	// PageSize is the number of records requested per page.
	PageSize int

	// MaxPages stops the walk after this many pages (0 = unlimited).
	MaxPages int
}

// DefaultConfig returns the walker configuration used for catalog fetches.
func DefaultConfig() Config {
	return Config{
		PageSize: MaxPageSize,
	}
}

// PageFunc fetches a single page.
type PageFunc[T any] func(ctx context.Context, page, limit int) ([]T, error)

// PageError reports which page failed.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("fetch page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Walk fetches pages 1, 2, ... until one comes back empty and returns all
// items in order. On error it returns a *PageError and nil items.
func Walk[T any](ctx context.Context, cfg Config, fetch PageFunc[T]) ([]T, error) {
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = MaxPageSize
	}

	start := time.Now()
	var items []T

	for page := 1; cfg.MaxPages <= 0 || page <= cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, &PageError{Page: page, Err: err}
		}

		batch, err := fetch(ctx, page, cfg.PageSize)
		if err != nil {
			return nil, &PageError{Page: page, Err: err}
		}
		if len(batch) == 0 {
			log.Debug().Int("page", page).Msg("Empty page - listing complete")
			break
		}

		items = append(items, batch...)
		log.Debug().
			Int("page", page).
			Int("page_items", len(batch)).
			Int("total_items", len(items)).
			Msg("Fetched page")
	}

	log.Debug().
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return items, nil
}
