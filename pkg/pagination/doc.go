// Package pagination walks numbered pages of a listing endpoint in order.
//
// Pages are requested one at a time starting at page 1 and the walk stops at
// the first empty page. Items are flattened in the order they were returned.
// A failed page aborts the walk and no partial results are returned.
//
// Example usage:
//
//	products, err := pagination.Walk(ctx, pagination.DefaultConfig(),
//		func(ctx context.Context, page, limit int) ([]client.Product, error) {
//			return shop.ListProducts(ctx, page, limit)
//		})
package pagination
