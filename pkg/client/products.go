package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Product is a catalog product as returned by /products.json.
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}

// Variant is a purchasable SKU belonging to a product.
type Variant struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Title     string `json:"title,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Price     Amount `json:"price"`

	// Cost is kept raw: it may be absent, null, or not a number at all, and
	// deciding what is usable belongs to the pricing policy.
	Cost json.RawMessage `json:"cost,omitempty"`
}

// Amount is a money value as text. Shopify sends prices as JSON strings
// ("19.99"); a bare JSON number is accepted and kept verbatim.
type Amount string

// UnmarshalJSON accepts a string, a number, or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = Amount(n.String())
		return nil
	}
}

func (a Amount) String() string {
	return string(a)
}

type productsResponse struct {
	Products []Product `json:"products"`
}

type variantEnvelope struct {
	Variant variantUpdate `json:"variant"`
}

type variantUpdate struct {
	ID    int64  `json:"id"`
	Price string `json:"price"`
}

type variantResponse struct {
	Variant Variant `json:"variant"`
}

// ListProducts fetches one page of products with their variants.
// Pages are numbered from 1.
func (c *Client) ListProducts(ctx context.Context, page, limit int) ([]Product, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1 (got %d)", page)
	}
	if limit < 1 {
		return nil, fmt.Errorf("limit must be >= 1 (got %d)", limit)
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("page", strconv.Itoa(page))

	var resp productsResponse
	if err := c.do(ctx, "GET", "products", "products.json", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// UpdateVariantPrice sets a variant's price and returns the saved variant.
func (c *Client) UpdateVariantPrice(ctx context.Context, variantID int64, price string) (*Variant, error) {
	if variantID <= 0 {
		return nil, errors.New("variant id is required")
	}
	if price == "" {
		return nil, errors.New("price is required")
	}

	payload := variantEnvelope{Variant: variantUpdate{ID: variantID, Price: price}}
	path := fmt.Sprintf("variants/%d.json", variantID)

	var resp variantResponse
	if err := c.do(ctx, "PUT", "variants", path, nil, payload, &resp); err != nil {
		return nil, err
	}
	return &resp.Variant, nil
}
