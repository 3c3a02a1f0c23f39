package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"eventedge/internal/config"
	"eventedge/internal/engine"
	"eventedge/internal/metrics"
	"eventedge/internal/provider"
	"eventedge/internal/scanner"
	"eventedge/internal/symbols"
	"eventedge/internal/web"
	"eventedge/pkg/model"
)

func runSingle(cmd *cobra.Command, showFixed, showRanked bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sym := symbols.Normalize(symbol)
	if sym == "" {
		if pricesFile == "" {
			return fmt.Errorf("--symbol or --prices is required")
		}
		sym = symbols.Normalize(strings.TrimSuffix(filepath.Base(pricesFile), filepath.Ext(pricesFile)))
	}
	if pricesFile != "" && anchorsFile == "" {
		return fmt.Errorf("--anchors is required with --prices")
	}

	collector := metrics.NewCollector()
	startMetrics(cfg.Metrics.Addr, collector)

	ecfg, err := cfg.AnalyzerConfig(time.Now())
	if err != nil {
		return err
	}

	p, err := createProvider(cfg, collector)
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	logger := log.With().Str("symbol", sym).Str("mode", string(ecfg.Mode)).Logger()
	logger.Debug().Str("provider", p.Name()).Msg("fetching data")

	bars, err := p.GetDailyBars(ctx, sym, provider.HistoryStart)
	if err != nil {
		return fmt.Errorf("fetching prices for %s: %w", sym, err)
	}
	anchors, err := p.GetAnchors(ctx, sym, ecfg.Mode)
	if err != nil {
		return fmt.Errorf("fetching %s dates for %s: %w", ecfg.Mode, sym, err)
	}
	logger.Info().Int("bars", len(bars)).Int("events", len(anchors)).Msg("data loaded")

	opts := []engine.Option{engine.WithLogger(logger), engine.WithMetrics(collector)}
	var bar *progressbar.ProgressBar
	if showRanked && format == "table" && len(anchors) > 0 {
		bar = newProgressBar(len(anchors), "Grid")
		opts = append(opts, engine.WithProgress(barProgress(bar)))
	}

	a, err := engine.NewAnalyzer(ecfg, opts...)
	if err != nil {
		return err
	}
	res, err := a.Run(ctx, sym, bars, anchors)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", sym, err)
	}

	if format == "json" {
		return outputJSON(os.Stdout, singleOutput(res, showFixed, showRanked))
	}

	if showFixed {
		renderFixed(os.Stdout, res)
	}
	if showRanked {
		if showFixed {
			fmt.Println()
		}
		renderRanked(os.Stdout, res)
	}
	fmt.Printf("\nAnalyzed %d %s events for %s in %s (run %s)\n",
		res.GridAnchors, res.Mode, res.Symbol, res.Elapsed.Round(time.Millisecond), res.RunID)
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	loader := symbols.NewLoader()
	var stocks []model.Stock
	switch {
	case symbolList != "":
		stocks, err = loader.LoadSymbols(strings.Split(symbolList, ","))
	case symbolsFile != "":
		stocks, err = loader.LoadFile(symbolsFile)
	default:
		stocks, err = loader.LoadUniverse(symbols.Universe(universe))
	}
	if err != nil {
		return fmt.Errorf("loading symbols: %w", err)
	}
	if len(stocks) == 0 {
		return fmt.Errorf("no stocks to scan")
	}

	collector := metrics.NewCollector()
	startMetrics(cfg.Metrics.Addr, collector)

	ecfg, err := cfg.AnalyzerConfig(time.Now())
	if err != nil {
		return err
	}
	p, err := createProvider(cfg, collector)
	if err != nil {
		return err
	}

	s, err := scanner.NewScanner(p, ecfg, cfg.Scanner.Workers, cfg.Scanner.Timeout,
		scanner.WithLogger(log.Logger), scanner.WithMetrics(collector))
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	log.Info().Int("symbols", len(stocks)).Str("mode", string(ecfg.Mode)).Msg("starting scan")

	var bar *progressbar.ProgressBar
	if format == "table" {
		bar = newProgressBar(len(stocks), "Scanning")
		s.SetProgressCallback(barProgress(bar))
	}

	result, err := s.Scan(ctx, stocks)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	if format == "json" {
		return outputJSON(os.Stdout, result)
	}
	renderScan(os.Stdout, result, ecfg.Rank.SortKeys)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	p, err := createProvider(cfg, collector)
	if err != nil {
		return err
	}

	// metrics are served on the API listener
	srv := web.NewServer(cfg, p, collector)

	ctx, cancel := interruptContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	return srv.Start(listenAddr)
}

// createProvider assembles the data source: local CSV files when given,
// otherwise every configured remote API behind circuit breakers, tried in
// order and cached for the process lifetime
func createProvider(cfg *config.Config, collector *metrics.Collector) (provider.Provider, error) {
	if pricesFile != "" {
		return provider.NewFileProvider(pricesFile, anchorsFile), nil
	}

	var providers []provider.Provider
	breaker := provider.DefaultBreakerSettings()

	// Finnhub (primary - earnings calendar)
	if cfg.API.Finnhub.Key != "" {
		providers = append(providers, provider.NewBreakerProvider(
			provider.NewFinnhubProvider(cfg.API.Finnhub.Key, cfg.API.Finnhub.RateLimit), breaker, collector))
	}

	// EODHD (secondary - earnings history and dividends)
	if cfg.API.EODHD.Key != "" {
		providers = append(providers, provider.NewBreakerProvider(
			provider.NewEODHDProvider(cfg.API.EODHD.Key, cfg.API.EODHD.RateLimit, provider.WithEODHDLogger(log.Logger)),
			breaker, collector))
	}

	// Yahoo Finance (fallback - always available, prices and dividends only)
	providers = append(providers, provider.NewBreakerProvider(provider.NewYahooProvider(), breaker, collector))

	fallback := provider.NewFallbackProvider(providers...)
	if !fallback.IsAvailable() {
		return nil, fmt.Errorf("no available data providers")
	}

	names := make([]string, 0, len(fallback.Providers()))
	for _, p := range fallback.Providers() {
		names = append(names, p.Name())
	}
	log.Debug().Strs("providers", names).Msg("using providers")

	var shared provider.Provider = fallback
	if cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		shared = provider.NewRedisCache(fallback, client, cfg.Cache.TTL, log.Logger)
		log.Debug().Str("addr", cfg.Cache.RedisAddr).Msg("using redis cache")
	}

	return provider.NewCachingProvider(shared, cfg.Cache.TTL), nil
}

func newProgressBar(total int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// barProgress advances bar monotonically; callbacks arrive out of order
// from parallel workers
func barProgress(bar *progressbar.ProgressBar) func(done, total int) {
	var last int64
	return func(done, total int) {
		for {
			prev := atomic.LoadInt64(&last)
			if int64(done) <= prev {
				return
			}
			if atomic.CompareAndSwapInt64(&last, prev, int64(done)) {
				bar.Set(done)
				return
			}
		}
	}
}
