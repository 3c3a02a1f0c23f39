package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"eventedge/internal/ratelimit"
	"eventedge/pkg/model"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubProvider implements the Provider interface for Finnhub API
type FinnhubProvider struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
	now       func() time.Time
}

// NewFinnhubProvider creates a new Finnhub provider
func NewFinnhubProvider(apiKey string, rateLimitPerMin int) *FinnhubProvider {
	return &FinnhubProvider{
		apiKey:    apiKey,
		baseURL:   finnhubBaseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   ratelimit.NewLimiter("finnhub", rateLimitPerMin),
		rateLimit: rateLimitPerMin,
		now:       time.Now,
	}
}

// Name returns the provider name
func (p *FinnhubProvider) Name() string {
	return "finnhub"
}

// IsAvailable checks if the provider has an API key
func (p *FinnhubProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// RateLimit returns the rate limit per minute
func (p *FinnhubProvider) RateLimit() int {
	return p.rateLimit
}

// finnhubCandle represents the Finnhub candle response
type finnhubCandle struct {
	C []float64 `json:"c"` // Close prices
	O []float64 `json:"o"` // Open prices
	S string    `json:"s"` // Status
	T []int64   `json:"t"` // Timestamps
}

type finnhubEarnings struct {
	EarningsCalendar []struct {
		Date   string `json:"date"`
		Symbol string `json:"symbol"`
	} `json:"earningsCalendar"`
}

type finnhubDividend struct {
	Date   string  `json:"date"` // ex-dividend date
	Amount float64 `json:"amount"`
}

func (p *FinnhubProvider) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("token", p.apiKey)
	reqURL := fmt.Sprintf("%s%s?%s", p.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
	}

	p.limiter.ResetBackoff()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// GetDailyBars fetches daily candles
func (p *FinnhubProvider) GetDailyBars(ctx context.Context, symbol string, from time.Time) ([]model.PriceBar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("resolution", "D")
	params.Set("from", fmt.Sprintf("%d", from.Unix()))
	params.Set("to", fmt.Sprintf("%d", p.now().Unix()))

	var data finnhubCandle
	if err := p.get(ctx, "/stock/candle", params, &data); err != nil {
		return nil, err
	}

	if data.S == "no_data" || len(data.T) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no data available"), Retryable: false}
	}

	loc := exchangeLocation("America/New_York")
	bars := make([]model.PriceBar, 0, len(data.T))
	for i := range data.T {
		if i >= len(data.O) || i >= len(data.C) {
			continue
		}
		bars = append(bars, model.PriceBar{
			Date:  model.CivilDate(time.Unix(data.T[i], 0).In(loc)),
			Open:  data.O[i],
			Close: data.C[i],
		})
	}
	sortBars(bars)
	return bars, nil
}

// GetAnchors fetches earnings report dates from the earnings calendar or
// ex-dividend dates from the dividend endpoint
func (p *FinnhubProvider) GetAnchors(ctx context.Context, symbol string, kind model.EventKind) ([]time.Time, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("from", HistoryStart.Format(model.DateLayout))
	// upcoming reports are included; the engine drops unrealized anchors
	params.Set("to", p.now().AddDate(1, 0, 0).Format(model.DateLayout))

	var raw []string
	switch kind {
	case model.EventEarnings:
		var data finnhubEarnings
		if err := p.get(ctx, "/calendar/earnings", params, &data); err != nil {
			return nil, err
		}
		for _, e := range data.EarningsCalendar {
			raw = append(raw, e.Date)
		}
	case model.EventDividend:
		var data []finnhubDividend
		if err := p.get(ctx, "/stock/dividend", params, &data); err != nil {
			return nil, err
		}
		for _, d := range data {
			raw = append(raw, d.Date)
		}
	default:
		return nil, notSupported(p.Name(), string(kind)+" dates")
	}

	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := model.ParseDate(s)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}

	if kind == model.EventDividend {
		return dividendWindow(dates), nil
	}
	return latestEarnings(dates), nil
}
