package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"eventedge/internal/engine"
	"eventedge/internal/metrics"
	"eventedge/internal/provider"
	"eventedge/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(scanned, total int)

// SymbolResult is the outcome of analyzing one symbol
type SymbolResult struct {
	Stock    model.Stock         `json:"stock"`
	Best     *engine.RankedEntry `json:"best,omitempty"`
	Anchors  int                 `json:"anchors"`
	Analysis *engine.Result      `json:"-"`
	Err      error               `json:"-"`
	Error    string              `json:"error,omitempty"`
}

// ScanResult holds the per-symbol results in input order
type ScanResult struct {
	TotalScanned int            `json:"total_scanned"`
	Succeeded    int            `json:"succeeded"`
	Results      []SymbolResult `json:"results"`
	ScanTime     time.Duration  `json:"scan_time"`
}

// Ranked returns the successful results that produced a best pair,
// ordered by that pair using the given sort keys
func (r *ScanResult) Ranked(keys []engine.SortKey) []SymbolResult {
	out := make([]SymbolResult, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Err == nil && res.Best != nil {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return engine.Less(*out[i].Best, *out[j].Best, keys)
	})
	return out
}

// Scanner runs the event analysis over many symbols in parallel
type Scanner struct {
	provider     provider.Provider
	analyzer     *engine.Analyzer
	mode         model.EventKind
	workers      int
	timeout      time.Duration
	logger       zerolog.Logger
	metrics      *metrics.Collector
	progressFunc ProgressCallback
}

// Option configures a Scanner
type Option func(*Scanner)

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scanner) {
		s.logger = l
	}
}

// WithMetrics records analysis runs on c
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Scanner) {
		s.metrics = c
	}
}

// NewScanner creates a new scanner. timeout bounds each symbol's fetch and
// analysis; 0 disables it.
func NewScanner(p provider.Provider, cfg engine.Config, workers int, timeout time.Duration, opts ...Option) (*Scanner, error) {
	if workers < 1 {
		workers = 1
	}
	s := &Scanner{
		provider: p,
		mode:     cfg.Mode,
		workers:  workers,
		timeout:  timeout,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	aopts := []engine.Option{engine.WithLogger(s.logger)}
	if s.metrics != nil {
		aopts = append(aopts, engine.WithMetrics(s.metrics))
	}
	a, err := engine.NewAnalyzer(cfg, aopts...)
	if err != nil {
		return nil, err
	}
	s.analyzer = a
	return s, nil
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

// Scan analyzes all provided stocks. Per-symbol failures are recorded in
// the result; only cancellation of ctx stops the scan early.
func (s *Scanner) Scan(ctx context.Context, stocks []model.Stock) (*ScanResult, error) {
	startTime := time.Now()

	results := make([]SymbolResult, len(stocks))
	if len(stocks) == 0 {
		return &ScanResult{Results: results, ScanTime: time.Since(startTime)}, nil
	}

	jobChan := make(chan int, len(stocks))
	for i := range stocks {
		jobChan <- i
	}
	close(jobChan)

	var scannedCount int64

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobChan {
				if ctx.Err() != nil {
					results[i] = SymbolResult{Stock: stocks[i], Err: ctx.Err()}
					continue
				}
				results[i] = s.analyzeStock(ctx, stocks[i])

				count := atomic.AddInt64(&scannedCount, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), len(stocks))
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	succeeded := 0
	for i := range results {
		if results[i].Err == nil {
			succeeded++
		} else {
			results[i].Error = results[i].Err.Error()
		}
	}

	s.logger.Info().
		Int("total", len(stocks)).
		Int("succeeded", succeeded).
		Dur("took", time.Since(startTime)).
		Msg("scan complete")

	return &ScanResult{
		TotalScanned: len(stocks),
		Succeeded:    succeeded,
		Results:      results,
		ScanTime:     time.Since(startTime),
	}, nil
}

// ScanSymbols scans specific symbols
func (s *Scanner) ScanSymbols(ctx context.Context, symbols []string) (*ScanResult, error) {
	stocks := make([]model.Stock, len(symbols))
	for i, sym := range symbols {
		stocks[i] = model.Stock{
			Symbol:   sym,
			Name:     sym,
			Exchange: "US",
		}
	}
	return s.Scan(ctx, stocks)
}

func (s *Scanner) analyzeStock(ctx context.Context, stock model.Stock) SymbolResult {
	res := SymbolResult{Stock: stock}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	bars, err := s.provider.GetDailyBars(ctx, stock.Symbol, provider.HistoryStart)
	if err != nil {
		res.Err = fmt.Errorf("fetching prices: %w", err)
		s.logger.Warn().Err(err).Str("symbol", stock.Symbol).Msg("price fetch failed")
		return res
	}
	anchors, err := s.provider.GetAnchors(ctx, stock.Symbol, s.mode)
	if err != nil {
		res.Err = fmt.Errorf("fetching %s dates: %w", s.mode, err)
		s.logger.Warn().Err(err).Str("symbol", stock.Symbol).Msg("anchor fetch failed")
		return res
	}

	analysis, err := s.analyzer.Run(ctx, stock.Symbol, bars, anchors)
	if err != nil {
		res.Err = err
		return res
	}
	res.Analysis = analysis
	res.Anchors = analysis.GridAnchors
	if len(analysis.Ranked) > 0 {
		best := analysis.Ranked[0]
		res.Best = &best
	}
	return res
}
