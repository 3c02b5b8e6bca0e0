package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCatalogUnavailable is returned when every listing source and fallback is exhausted.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// ErrPersistence marks a failure to write an artifact or the manifest ledger.
var ErrPersistence = errors.New("persistence failure")

// FetchErrorKind is the classification attached to a history fetch error.
type FetchErrorKind string

// Fetch error kinds reported by provider clients.
const (
	FetchTransient   FetchErrorKind = "transient"
	FetchEmpty       FetchErrorKind = "empty"
	FetchRateLimited FetchErrorKind = "rate_limited"
	FetchPermanent   FetchErrorKind = "permanent"
)

// FetchError is the classifiable error returned by a HistoryFetcher.
type FetchError struct {
	Kind       FetchErrorKind
	Symbol     string
	StatusCode int // provider status when known
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.Symbol, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Symbol, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err with a classification.
func NewFetchError(kind FetchErrorKind, symbol string, statusCode int, err error) *FetchError {
	return &FetchError{Kind: kind, Symbol: symbol, StatusCode: statusCode, Err: err}
}

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// IsRateLimitMessage reports whether an error message looks like a throttling response.
// Used only when no structured status is available.
func IsRateLimitMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "ratelimit") ||
		strings.Contains(msg, "too many requests")
}
