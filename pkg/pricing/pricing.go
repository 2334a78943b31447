// Package pricing derives a retail price from a variant's cost.
//
// The multiplier policy is a placeholder: stores are expected to replace it
// with their own margin rules. Cost arrives as raw JSON because the remote
// catalog may send it absent, null, or as a non-numeric value.
package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultMultiplier doubles the cost.
var DefaultMultiplier = decimal.NewFromInt(2)

// Both errors mean "not applicable": no price can be derived.
var (
	ErrMissingCost = errors.New("missing cost")
	ErrInvalidCost = errors.New("invalid cost")
)

// Places is the number of decimal places a computed price is rounded to.
const Places = 2

// Bounds on money values read from the catalog. Rescaling a decimal with a
// huge exponent allocates one digit per unit of exponent.
const (
	maxAmountLength   = 32
	maxAmountExponent = 18
)

// Calculator maps a cost to a new price.
type Calculator struct {
	Multiplier decimal.Decimal
}

// NewCalculator returns a calculator using multiplier, or DefaultMultiplier
// when multiplier is not positive.
func NewCalculator(multiplier decimal.Decimal) Calculator {
	if !multiplier.IsPositive() {
		multiplier = DefaultMultiplier
	}
	return Calculator{Multiplier: multiplier}
}

// Calculate returns round(cost*multiplier, 2). Only a positive JSON number
// is a usable cost; strings, even numeric ones, are rejected.
func (c Calculator) Calculate(cost json.RawMessage) (decimal.Decimal, error) {
	value, err := ParseCost(cost)
	if err != nil {
		return decimal.Zero, err
	}
	multiplier := c.Multiplier
	if !multiplier.IsPositive() {
		multiplier = DefaultMultiplier
	}
	return value.Mul(multiplier).Round(Places), nil
}

// ParseCost validates a raw cost value and returns it as a decimal.
func ParseCost(cost json.RawMessage) (decimal.Decimal, error) {
	raw := bytes.TrimSpace(cost)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, ErrMissingCost
	}

	// Only JSON numbers start with a digit or a minus sign.
	if raw[0] != '-' && (raw[0] < '0' || raw[0] > '9') {
		return decimal.Zero, ErrInvalidCost
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Zero, ErrInvalidCost
	}

	value, err := parseAmount(n.String())
	if err != nil {
		return decimal.Zero, ErrInvalidCost
	}
	if !value.IsPositive() {
		return decimal.Zero, ErrInvalidCost
	}
	return value, nil
}

// ParsePrice parses a price as stored by the remote catalog ("19.99", "20").
func ParsePrice(price string) (decimal.Decimal, error) {
	return parseAmount(price)
}

func parseAmount(text string) (decimal.Decimal, error) {
	if len(text) > maxAmountLength {
		return decimal.Zero, fmt.Errorf("amount exceeds %d characters", maxAmountLength)
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, err
	}
	if exp := value.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Zero, fmt.Errorf("amount %q out of range", text)
	}
	return value, nil
}

// FormatPrice renders a price the way the remote catalog stores it.
func FormatPrice(price decimal.Decimal) string {
	return price.StringFixed(Places)
}

// NeedsUpdate reports whether newPrice differs numerically from current.
func NeedsUpdate(current, newPrice decimal.Decimal) bool {
	return !current.Equal(newPrice)
}
