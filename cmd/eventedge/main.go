package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"eventedge/internal/config"
	"eventedge/internal/engine"
	"eventedge/internal/metrics"
)

var (
	cfgFile     string
	verbose     bool
	format      string
	metricsAddr string

	symbol       string
	mode         string
	pastOnly     bool
	holdMin      int
	holdMax      int
	sortList     string
	top          int
	sampleSize   float64
	fallbackDays int
	workers      int
	pricesFile   string
	anchorsFile  string

	universe    string
	symbolList  string
	symbolsFile string

	listenAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "eventedge",
		Short: "Event-relative return analysis for earnings and ex-dividend dates",
		Long: `Eventedge measures how a stock's price behaves around recurring events
(earnings reports or ex-dividend dates) and ranks every buy/sell day-offset
pair by how consistently it would have been profitable.

Examples:
  eventedge fixed --symbol AAPL
  eventedge grid --symbol KO --mode dividend --past-only --top 25
  eventedge analyze --prices aapl.csv --anchors aapl_earnings.csv --format json
  eventedge scan --universe dividend --mode dividend
  eventedge serve --addr :8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(verbose)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "output format: table, json")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")

	fixedCmd := &cobra.Command{
		Use:   "fixed",
		Short: "Show returns at fixed offsets around each event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(cmd, true, false)
		},
	}
	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "Rank every buy/sell offset pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(cmd, false, true)
		},
	}
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the fixed-offset table and the ranked grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(cmd, true, true)
		},
	}
	for _, c := range []*cobra.Command{fixedCmd, gridCmd, analyzeCmd} {
		addAnalysisFlags(c)
		c.Flags().StringVar(&symbol, "symbol", "", "ticker symbol to analyze")
		c.Flags().StringVar(&pricesFile, "prices", "", "read prices from a CSV file (Date,Open,Close)")
		c.Flags().StringVar(&anchorsFile, "anchors", "", "read event dates from a CSV file")
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Find the best offset pair for every symbol in a universe",
		RunE:  runScan,
	}
	addAnalysisFlags(scanCmd)
	scanCmd.Flags().StringVar(&universe, "universe", "test", "symbol universe: dividend, megacap, test")
	scanCmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated list of symbols (overrides --universe)")
	scanCmd.Flags().StringVar(&symbolsFile, "symbols-file", "", "file with one symbol per line (overrides --universe)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis as a JSON HTTP API",
		RunE:  runServe,
	}
	addAnalysisFlags(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "listen address")

	rootCmd.AddCommand(fixedCmd, gridCmd, analyzeCmd, scanCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&mode, "mode", "earnings", "event type: earnings, dividend")
	cmd.Flags().BoolVar(&pastOnly, "past-only", false, "only buy before and sell on the event day")
	cmd.Flags().IntVar(&holdMin, "hold-min", 1, "minimum holding time in days")
	cmd.Flags().IntVar(&holdMax, "hold-max", engine.DefaultHoldMax, "maximum holding time in days")
	cmd.Flags().StringVar(&sortList, "sort", "hit_point,average_return", "comma-separated sort keys: hit_point, average_return, holding_time, score")
	cmd.Flags().IntVar(&top, "top", 100, "number of ranked pairs to show (negative shows all)")
	cmd.Flags().Float64Var(&sampleSize, "sample-size", 0, "hit point normalizer for the score (0 = number of events)")
	cmd.Flags().IntVar(&fallbackDays, "fallback-days", 0, "shift missing fixed-offset prices by this many days")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = config)")
}

func setupLogging(debug bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// loadConfig reads the config file and applies flags the user set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if !verbose && cfg.Log.Level != "" {
		if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Analysis.Mode = mode
	}
	if flags.Changed("past-only") {
		cfg.Analysis.PastOnly = pastOnly
	}
	if flags.Changed("hold-min") {
		cfg.Analysis.HoldMin = holdMin
	}
	if flags.Changed("hold-max") {
		cfg.Analysis.HoldMax = holdMax
	}
	if flags.Changed("sort") {
		cfg.Analysis.Sort = strings.Split(sortList, ",")
	}
	if flags.Changed("top") {
		cfg.Analysis.Top = top
	}
	if flags.Changed("sample-size") {
		cfg.Analysis.SampleSize = sampleSize
	}
	if flags.Changed("fallback-days") {
		cfg.Analysis.FallbackDays = fallbackDays
	}
	if workers > 0 {
		cfg.Engine.Workers = workers
		cfg.Scanner.Workers = workers
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if format != "table" && format != "json" {
		return nil, fmt.Errorf("unknown format %q (want table or json)", format)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// interruptContext is cancelled on SIGINT/SIGTERM
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Warn().Msg("interrupted, stopping")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// startMetrics serves the collector until the process exits
func startMetrics(addr string, collector *metrics.Collector) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}
