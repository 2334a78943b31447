package repricer

import "fmt"

// ConnectionError means the store session could not be set up. The run
// cannot continue.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to shopify: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// FetchError means a catalog page could not be listed. Variants fetched from
// earlier pages are discarded.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch variants (page %d): %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ValidationError means a single variant carries data no price can be
// derived from. The variant is skipped and the run continues.
type ValidationError struct {
	VariantID int64
	Reason    string
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("variant %d: %s", e.VariantID, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
