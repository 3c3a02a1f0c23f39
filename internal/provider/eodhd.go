package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"eventedge/internal/ratelimit"
	"eventedge/pkg/model"
)

const eodhdBaseURL = "https://eodhd.com/api"

// EODHDProvider reads prices, dividends and earnings history from the
// EODHD (End of Day Historical Data) API
type EODHDProvider struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
	logger    zerolog.Logger
}

// EODHDOption configures the provider
type EODHDOption func(*EODHDProvider)

// WithEODHDBaseURL sets a custom base URL
func WithEODHDBaseURL(baseURL string) EODHDOption {
	return func(p *EODHDProvider) {
		p.baseURL = baseURL
	}
}

// WithEODHDLogger sets a logger
func WithEODHDLogger(l zerolog.Logger) EODHDOption {
	return func(p *EODHDProvider) {
		p.logger = l
	}
}

// NewEODHDProvider creates a new EODHD provider
func NewEODHDProvider(apiKey string, rateLimitPerMin int, opts ...EODHDOption) *EODHDProvider {
	p := &EODHDProvider{
		apiKey:    apiKey,
		baseURL:   eodhdBaseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   ratelimit.NewLimiter("eodhd", rateLimitPerMin),
		rateLimit: rateLimitPerMin,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name
func (p *EODHDProvider) Name() string {
	return "eodhd"
}

// IsAvailable checks if the provider has an API key
func (p *EODHDProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// RateLimit returns the rate limit per minute
func (p *EODHDProvider) RateLimit() int {
	return p.rateLimit
}

type eodhdBar struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	Close float64 `json:"close"`
}

type eodhdDividend struct {
	Date  string  `json:"date"` // ex-dividend date
	Value float64 `json:"value"`
}

type eodhdEarnings struct {
	ReportDate string `json:"reportDate"`
	Date       string `json:"date"` // fiscal period end
}

// eodhdSymbol converts a bare ticker to TICKER.US
func eodhdSymbol(symbol string) string {
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + ".US"
}

func (p *EODHDProvider) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", p.apiKey)
	params.Set("fmt", "json")
	reqURL := fmt.Sprintf("%s%s?%s", p.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	p.logger.Debug().Str("url", p.baseURL+path).Msg("EODHD API request")

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
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ProviderError{
			Provider:  p.Name(),
			Err:       fmt.Errorf("status %d on %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body))),
			Retryable: resp.StatusCode >= 500,
		}
	}

	p.limiter.ResetBackoff()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// GetDailyBars fetches end-of-day prices in ascending date order
func (p *EODHDProvider) GetDailyBars(ctx context.Context, symbol string, from time.Time) ([]model.PriceBar, error) {
	params := url.Values{}
	params.Set("from", from.Format(model.DateLayout))
	params.Set("period", "d")
	params.Set("order", "a")

	var data []eodhdBar
	if err := p.get(ctx, "/eod/"+eodhdSymbol(symbol), params, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no data available"), Retryable: false}
	}

	bars := make([]model.PriceBar, 0, len(data))
	for _, d := range data {
		t, err := model.ParseDate(d.Date)
		if err != nil {
			continue
		}
		bars = append(bars, model.PriceBar{Date: t, Open: d.Open, Close: d.Close})
	}
	sortBars(bars)
	return bars, nil
}

// GetAnchors returns ex-dividend dates from /div or earnings report dates
// from the fundamentals earnings history
func (p *EODHDProvider) GetAnchors(ctx context.Context, symbol string, kind model.EventKind) ([]time.Time, error) {
	var raw []string
	switch kind {
	case model.EventDividend:
		params := url.Values{}
		params.Set("from", HistoryStart.Format(model.DateLayout))
		var data []eodhdDividend
		if err := p.get(ctx, "/div/"+eodhdSymbol(symbol), params, &data); err != nil {
			return nil, err
		}
		for _, d := range data {
			raw = append(raw, d.Date)
		}
	case model.EventEarnings:
		params := url.Values{}
		params.Set("filter", "Earnings::History")
		var data map[string]eodhdEarnings
		if err := p.get(ctx, "/fundamentals/"+eodhdSymbol(symbol), params, &data); err != nil {
			return nil, err
		}
		for _, e := range data {
			if e.ReportDate != "" {
				raw = append(raw, e.ReportDate)
			}
		}
	default:
		return nil, notSupported(p.Name(), string(kind)+" dates")
	}

	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := model.ParseDate(s)
		if err != nil {
			p.logger.Debug().Str("date", s).Msg("skipping unparseable EODHD date")
			continue
		}
		dates = append(dates, d)
	}

	if kind == model.EventDividend {
		return dividendWindow(dates), nil
	}
	return latestEarnings(dates), nil
}
