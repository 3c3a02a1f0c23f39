package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventedge/pkg/model"
)

type fakeProvider struct {
	name      string
	available bool
	bars      []model.PriceBar
	anchors   []time.Time
	barsErr   error
	anchorErr error

	mu          sync.Mutex
	barCalls    int
	anchorCalls int
}

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) IsAvailable() bool { return f.available }
func (f *fakeProvider) RateLimit() int    { return 60 }

func (f *fakeProvider) GetDailyBars(ctx context.Context, symbol string, from time.Time) ([]model.PriceBar, error) {
	f.mu.Lock()
	f.barCalls++
	f.mu.Unlock()
	if f.barsErr != nil {
		return nil, f.barsErr
	}
	return trimBars(f.bars, from), nil
}

func (f *fakeProvider) GetAnchors(ctx context.Context, symbol string, kind model.EventKind) ([]time.Time, error) {
	f.mu.Lock()
	f.anchorCalls++
	f.mu.Unlock()
	if f.anchorErr != nil {
		return nil, f.anchorErr
	}
	return append([]time.Time(nil), f.anchors...), nil
}

func day(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func testBars() []model.PriceBar {
	return []model.PriceBar{
		{Date: day("2020-01-02"), Open: 10, Close: 11},
		{Date: day("2020-01-03"), Open: 11, Close: 12},
		{Date: day("2020-01-06"), Open: 12, Close: 13},
	}
}

func TestFallbackProvider_SkipsUnavailable(t *testing.T) {
	off := &fakeProvider{name: "off", available: false}
	on := &fakeProvider{name: "on", available: true, bars: testBars()}

	fp := NewFallbackProvider(off, on)
	require.Len(t, fp.Providers(), 1)
	assert.True(t, fp.IsAvailable())
	assert.Equal(t, 60, fp.RateLimit())

	bars, err := fp.GetDailyBars(context.Background(), "AAPL", HistoryStart)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Zero(t, off.barCalls)
}

func TestFallbackProvider_FallsThrough(t *testing.T) {
	bad := &fakeProvider{name: "bad", available: true, barsErr: errors.New("boom")}
	good := &fakeProvider{name: "good", available: true, bars: testBars()}

	bars, err := NewFallbackProvider(bad, good).GetDailyBars(context.Background(), "AAPL", HistoryStart)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, 1, bad.barCalls)
	assert.Equal(t, 1, good.barCalls)
}

func TestFallbackProvider_PrefersRealError(t *testing.T) {
	upstream := errors.New("upstream down")
	a := &fakeProvider{name: "a", available: true, anchorErr: upstream}
	b := &fakeProvider{name: "b", available: true, anchorErr: notSupported("b", "earnings dates")}

	_, err := NewFallbackProvider(a, b).GetAnchors(context.Background(), "AAPL", model.EventEarnings)
	assert.ErrorIs(t, err, upstream)
	assert.NotErrorIs(t, err, ErrNotSupported)
}

func TestFallbackProvider_NoProviders(t *testing.T) {
	fp := NewFallbackProvider()
	assert.False(t, fp.IsAvailable())
	_, err := fp.GetDailyBars(context.Background(), "AAPL", HistoryStart)
	assert.Error(t, err)
}

func TestProviderError(t *testing.T) {
	inner := errors.New("status 500")
	err := &ProviderError{Provider: "yahoo", Err: inner, Retryable: true}
	assert.Equal(t, "yahoo: status 500", err.Error())
	assert.ErrorIs(t, err, inner)

	var pe *ProviderError
	require.ErrorAs(t, notSupported("yahoo", "earnings dates"), &pe)
	assert.False(t, pe.Retryable)
	assert.ErrorIs(t, pe, ErrNotSupported)
}

func TestLatestEarnings(t *testing.T) {
	var dates []time.Time
	start := day("1990-01-01")
	for i := 0; i < EarningsLimit+10; i++ {
		dates = append(dates, start.AddDate(0, 3*(EarningsLimit+10-i), 0))
	}

	got := latestEarnings(dates)
	require.Len(t, got, EarningsLimit)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Before(got[i]))
	}
	assert.Equal(t, start.AddDate(0, 3*(EarningsLimit+10), 0), got[len(got)-1])
}

func TestDividendWindow(t *testing.T) {
	got := dividendWindow([]time.Time{
		day("1999-12-31"),
		day("2005-03-01"),
		day("2027-01-01"),
		day("2020-06-15"),
		day("2000-01-01"),
	})
	assert.Equal(t, []time.Time{day("2020-06-15"), day("2005-03-01"), day("2000-01-01")}, got)
}

func TestCachingProvider_Bars(t *testing.T) {
	inner := &fakeProvider{name: "inner", available: true, bars: testBars()}
	cp := NewCachingProvider(inner, 0)
	ctx := context.Background()

	bars, err := cp.GetDailyBars(ctx, "AAPL", HistoryStart)
	require.NoError(t, err)
	assert.Len(t, bars, 3)

	// later start is served from the cached superset
	bars, err = cp.GetDailyBars(ctx, "AAPL", day("2020-01-03"))
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, 1, inner.barCalls)

	// earlier start forces a refetch
	_, err = cp.GetDailyBars(ctx, "AAPL", day("1990-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.barCalls)

	_, err = cp.GetDailyBars(ctx, "MSFT", HistoryStart)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.barCalls)
}

func TestCachingProvider_Anchors(t *testing.T) {
	inner := &fakeProvider{name: "inner", available: true, anchors: []time.Time{day("2020-01-03")}}
	cp := NewCachingProvider(inner, 0)
	ctx := context.Background()

	a1, err := cp.GetAnchors(ctx, "AAPL", model.EventEarnings)
	require.NoError(t, err)
	a1[0] = time.Time{} // callers may mutate their copy

	a2, err := cp.GetAnchors(ctx, "AAPL", model.EventEarnings)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2020-01-03")}, a2)
	assert.Equal(t, 1, inner.anchorCalls)

	_, err = cp.GetAnchors(ctx, "AAPL", model.EventDividend)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.anchorCalls)
}

func TestCachingProvider_Expiry(t *testing.T) {
	inner := &fakeProvider{name: "inner", available: true, bars: testBars()[:1], anchors: []time.Time{day("2020-01-03")}}
	cp := NewCachingProvider(inner, time.Hour)
	clock := day("2021-01-01")
	cp.now = func() time.Time { return clock }
	ctx := context.Background()

	bars, err := cp.GetDailyBars(ctx, "AAPL", HistoryStart)
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	_, err = cp.GetAnchors(ctx, "AAPL", model.EventEarnings)
	require.NoError(t, err)

	// upstream gains a trading day and an event
	inner.bars = testBars()
	inner.anchors = append(inner.anchors, day("2020-04-03"))

	clock = clock.Add(59 * time.Minute)
	bars, err = cp.GetDailyBars(ctx, "AAPL", HistoryStart)
	require.NoError(t, err)
	assert.Len(t, bars, 1, "still within the ttl")
	assert.Equal(t, 1, inner.barCalls)

	clock = clock.Add(2 * time.Minute)
	bars, err = cp.GetDailyBars(ctx, "AAPL", HistoryStart)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, 2, inner.barCalls)

	dates, err := cp.GetAnchors(ctx, "AAPL", model.EventEarnings)
	require.NoError(t, err)
	assert.Len(t, dates, 2)
	assert.Equal(t, 2, inner.anchorCalls)
}

func TestCachingProvider_ErrorsNotCached(t *testing.T) {
	inner := &fakeProvider{name: "inner", available: true, barsErr: errors.New("boom")}
	cp := NewCachingProvider(inner, 0)

	_, err := cp.GetDailyBars(context.Background(), "AAPL", HistoryStart)
	require.Error(t, err)
	_, err = cp.GetDailyBars(context.Background(), "AAPL", HistoryStart)
	require.Error(t, err)
	assert.Equal(t, 2, inner.barCalls)
}
