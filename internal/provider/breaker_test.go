package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	cb "github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventedge/internal/metrics"
	"eventedge/pkg/model"
)

func TestBreakerProvider_PassesThrough(t *testing.T) {
	inner := &fakeProvider{name: "inner", available: true, bars: testBars(), anchors: []time.Time{day("2020-01-03")}}
	collector := metrics.NewCollector()
	bp := NewBreakerProvider(inner, DefaultBreakerSettings(), collector)

	bars, err := bp.GetDailyBars(context.Background(), "AAPL", HistoryStart)
	require.NoError(t, err)
	assert.Len(t, bars, 3)

	dates, err := bp.GetAnchors(context.Background(), "AAPL", model.EventEarnings)
	require.NoError(t, err)
	assert.Len(t, dates, 1)

	assert.Equal(t, "inner", bp.Name())
	assert.Equal(t, "closed", bp.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ProviderCalls.WithLabelValues("inner", "bars")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ProviderCalls.WithLabelValues("inner", "anchors")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.ProviderErrors.WithLabelValues("inner", "bars")))
}

func TestBreakerProvider_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeProvider{name: "flaky", available: true, barsErr: errors.New("status 503")}
	collector := metrics.NewCollector()
	bp := NewBreakerProvider(inner, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute}, collector)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := bp.GetDailyBars(ctx, "AAPL", HistoryStart)
		require.Error(t, err)
	}
	assert.Equal(t, "open", bp.State())

	_, err := bp.GetDailyBars(ctx, "AAPL", HistoryStart)
	require.ErrorIs(t, err, cb.ErrOpenState)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable)

	// the open breaker short-circuits without reaching the upstream
	assert.Equal(t, 2, inner.barCalls)
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.ProviderErrors.WithLabelValues("flaky", "bars")))
}

func TestBreakerProvider_NotSupportedDoesNotTrip(t *testing.T) {
	inner := &fakeProvider{name: "yahooish", available: true, anchorErr: notSupported("yahooish", "earnings dates")}
	bp := NewBreakerProvider(inner, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		_, err := bp.GetAnchors(context.Background(), "AAPL", model.EventEarnings)
		require.ErrorIs(t, err, ErrNotSupported)
	}
	assert.Equal(t, "closed", bp.State())
	assert.Equal(t, 3, inner.anchorCalls)
}

func TestBreakerProvider_InFallbackChain(t *testing.T) {
	down := NewBreakerProvider(
		&fakeProvider{name: "down", available: true, barsErr: errors.New("timeout")},
		BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Minute}, nil)
	up := &fakeProvider{name: "up", available: true, bars: testBars()}
	fp := NewFallbackProvider(down, up)

	for i := 0; i < 3; i++ {
		bars, err := fp.GetDailyBars(context.Background(), "AAPL", HistoryStart)
		require.NoError(t, err)
		assert.Len(t, bars, 3)
	}
	assert.Equal(t, "open", down.State())
	assert.Equal(t, 3, up.barCalls)
}
