package provider

import (
	"context"
	"errors"
	"sort"
	"time"

	"eventedge/pkg/model"
)

// HistoryStart is the earliest date prices are requested from
var HistoryStart = time.Date(1998, 1, 1, 0, 0, 0, 0, time.UTC)

// EarningsLimit caps how many of the most recent earnings dates are returned
const EarningsLimit = 95

// Ex-dividend dates outside this window are dropped
var (
	dividendWindowStart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	dividendWindowEnd   = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
)

// ErrNotSupported is wrapped by providers that cannot serve a request kind
var ErrNotSupported = errors.New("not supported")

// PriceProvider supplies daily price bars
type PriceProvider interface {
	// GetDailyBars fetches one bar per trading day from the given date to today
	GetDailyBars(ctx context.Context, symbol string, from time.Time) ([]model.PriceBar, error)
}

// AnchorProvider supplies event dates
type AnchorProvider interface {
	// GetAnchors returns earnings report dates or ex-dividend dates
	GetAnchors(ctx context.Context, symbol string, kind model.EventKind) ([]time.Time, error)
}

// Provider defines the interface for data providers
type Provider interface {
	PriceProvider
	AnchorProvider

	// Name returns the provider name
	Name() string

	// IsAvailable checks if the provider is available (has valid API key)
	IsAvailable() bool

	// RateLimit returns the rate limit per minute
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

func notSupported(provider, what string) error {
	return &ProviderError{Provider: provider, Err: errors.Join(ErrNotSupported, errors.New(what)), Retryable: false}
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a new fallback provider
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	// Filter to only available providers
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetDailyBars tries each provider in order until one succeeds
func (f *FallbackProvider) GetDailyBars(ctx context.Context, symbol string, from time.Time) ([]model.PriceBar, error) {
	var lastErr error
	for _, p := range f.providers {
		bars, err := p.GetDailyBars(ctx, symbol, from)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no available data providers")
	}
	return nil, lastErr
}

// GetAnchors tries each provider in order, skipping those that do not
// support the event kind
func (f *FallbackProvider) GetAnchors(ctx context.Context, symbol string, kind model.EventKind) ([]time.Time, error) {
	var lastErr error
	for _, p := range f.providers {
		dates, err := p.GetAnchors(ctx, symbol, kind)
		if err == nil {
			return dates, nil
		}
		if lastErr == nil || !errors.Is(err, ErrNotSupported) {
			lastErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no available data providers")
	}
	return nil, lastErr
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the highest rate limit among providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		if p.RateLimit() > maxRate {
			maxRate = p.RateLimit()
		}
	}
	return maxRate
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}

// latestEarnings keeps the EarningsLimit most recent dates, ascending
func latestEarnings(dates []time.Time) []time.Time {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if len(dates) > EarningsLimit {
		dates = dates[len(dates)-EarningsLimit:]
	}
	return dates
}

// dividendWindow keeps dates inside the supported window, newest first
func dividendWindow(dates []time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if d.Before(dividendWindowStart) || d.After(dividendWindowEnd) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}

// sortBars orders bars by date ascending
func sortBars(bars []model.PriceBar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}
