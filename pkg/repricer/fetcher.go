package repricer

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/shopify-repricer/pkg/client"
	"github.com/Sternrassler/shopify-repricer/pkg/logging"
	"github.com/Sternrassler/shopify-repricer/pkg/pagination"
)

// ProductLister lists one page of the catalog.
type ProductLister interface {
	ListProducts(ctx context.Context, page, limit int) ([]client.Product, error)
}

// FetchVariants walks every product page and returns all variants in the
// order the store listed them. Any page failure yields a *FetchError and no
// variants.
func FetchVariants(ctx context.Context, lister ProductLister) ([]client.Variant, error) {
	logger := logging.NewLogger("fetcher")
	start := time.Now()

	products, err := pagination.Walk[client.Product](ctx, pagination.DefaultConfig(), lister.ListProducts)
	if err != nil {
		page := 0
		var pageErr *pagination.PageError
		if errors.As(err, &pageErr) {
			page = pageErr.Page
			err = pageErr.Err
		}
		logger.Error().Err(err).Int("page", page).Msg("Failed to fetch products")
		return nil, &FetchError{Page: page, Err: err}
	}

	var variants []client.Variant
	for _, p := range products {
		variants = append(variants, p.Variants...)
	}

	logger.Info().
		Int("products", len(products)).
		Int("variants", len(variants)).
		Dur("duration", time.Since(start)).
		Msg("Fetched catalog")

	return variants, nil
}
