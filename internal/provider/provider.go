// Package provider fetches OHLCV bars from remote market-data APIs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chanlens/pkg/model"
)

const (
	DefaultLimit = 500
	MaxLimit     = 1500
)

var (
	ErrRateLimited    = errors.New("rate limited")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnavailable    = errors.New("provider unavailable")
)

// intervals maps every supported kline interval to its duration
var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// IntervalDuration returns the bar width of a supported interval
func IntervalDuration(interval string) (time.Duration, bool) {
	d, ok := intervals[interval]
	return d, ok
}

// Query selects a window of bars
type Query struct {
	Symbol    string
	Interval  string
	Limit     int
	StartTime *time.Time
	EndTime   *time.Time
}

// Normalize upper-cases the symbol, applies the default limit and
// rejects unsupported intervals or limits.
func (q Query) Normalize() (Query, error) {
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	if q.Symbol == "" {
		return q, fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	if _, ok := intervals[q.Interval]; !ok {
		return q, fmt.Errorf("%w: unsupported interval %q", ErrInvalidRequest, q.Interval)
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return q, fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidRequest, MaxLimit, q.Limit)
	}
	if q.StartTime != nil && q.EndTime != nil && q.EndTime.Before(*q.StartTime) {
		return q, fmt.Errorf("%w: end time before start time", ErrInvalidRequest)
	}
	return q, nil
}

// Key identifies the query for caching
func (q Query) Key() string {
	key := fmt.Sprintf("%s|%s|%d", q.Symbol, q.Interval, q.Limit)
	if q.StartTime != nil {
		key += fmt.Sprintf("|s%d", q.StartTime.UnixMilli())
	}
	if q.EndTime != nil {
		key += fmt.Sprintf("|e%d", q.EndTime.UnixMilli())
	}
	return key
}

// Provider defines the interface for bar sources
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetBars returns bars ascending by timestamp. An empty slice with a
	// nil error means the source had no bars for the window.
	GetBars(ctx context.Context, q Query) ([]model.Bar, error)

	// IsAvailable checks if the provider can serve requests
	IsAvailable() bool

	// RateLimit returns the request budget per minute
	RateLimit() int
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err is a failed fetch
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsRetryable reports whether a failed fetch may succeed on retry
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}
