package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"eventedge/internal/metrics"
	"eventedge/pkg/model"
)

// Config holds everything one analysis run needs. Nothing is read from
// package state, so concurrent runs with different configs are independent.
type Config struct {
	Mode         model.EventKind
	Offsets      []int // nil uses OffsetsFor(Mode)
	FallbackDays int
	Grid         GridConfig
	// Rank.SampleSize 0 normalizes hit points by the number of anchors that
	// produced a combination row.
	Rank      RankConfig
	ChunkSize int // rows per aggregation chunk; 0 aggregates in one pass
	Today     time.Time
}

// DefaultConfig returns the earnings-mode, future-inclusive configuration
func DefaultConfig() Config {
	return Config{
		Mode: model.EventEarnings,
		Grid: GridConfig{
			Buy:  FutureBuyRange,
			Sell: FutureSellRange,
		},
		Rank: RankConfig{
			HoldMin:  1,
			HoldMax:  DefaultHoldMax,
			SortKeys: DefaultSortKeys,
			TopN:     100,
		},
		ChunkSize: 16,
	}
}

// Validate checks the configuration before any work is done
func (c Config) Validate() error {
	if _, err := model.ParseEventKind(string(c.Mode)); err != nil {
		return err
	}
	if c.Offsets != nil && len(c.Offsets) == 0 {
		return ErrNoOffsets
	}
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if c.Rank.HoldMin > c.Rank.HoldMax {
		return fmt.Errorf("%w: holding time min %d > max %d", ErrInvalidRange, c.Rank.HoldMin, c.Rank.HoldMax)
	}
	if c.Rank.SampleSize < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidSampleSize, c.Rank.SampleSize)
	}
	if _, err := ParseSortKeys(sortKeyNames(c.Rank.SortKeys)); err != nil {
		return err
	}
	return nil
}

// Result is the output of one analysis run
type Result struct {
	RunID        string           `json:"run_id"`
	Symbol       string           `json:"symbol"`
	Mode         model.EventKind  `json:"mode"`
	Today        time.Time        `json:"today"`
	Offsets      []int            `json:"offsets"`
	Fixed        []FixedOffsetRow `json:"fixed"`
	RowHitPoints []int            `json:"row_hit_points"`
	Cumulative   map[int]int      `json:"cumulative"`
	GridAnchors  int              `json:"grid_anchors"`
	PairCount    int              `json:"pair_count"`
	SampleSize   float64          `json:"sample_size"`
	Ranked       []RankedEntry    `json:"ranked"`
	Elapsed      time.Duration    `json:"elapsed"`
}

// Analyzer runs the full pipeline: index, fixed offsets, grid, aggregation
// and ranking.
type Analyzer struct {
	config       Config
	logger       zerolog.Logger
	metrics      *metrics.Collector
	progressFunc ProgressCallback
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// WithMetrics records run metrics on c
func WithMetrics(c *metrics.Collector) Option {
	return func(a *Analyzer) {
		a.metrics = c
	}
}

// WithProgress reports grid progress per anchor
func WithProgress(fn ProgressCallback) Option {
	return func(a *Analyzer) {
		a.progressFunc = fn
	}
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(cfg Config, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	a := &Analyzer{
		config: cfg,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run analyzes one symbol. The context is checked between stages; a run
// whose context ends returns the context error and no partial result.
func (a *Analyzer) Run(ctx context.Context, symbol string, bars []model.PriceBar, anchors []time.Time) (*Result, error) {
	start := time.Now()
	cfg := a.config

	today := cfg.Today
	if today.IsZero() {
		today = time.Now()
	}
	offsets := cfg.Offsets
	if offsets == nil {
		offsets = OffsetsFor(cfg.Mode)
	}

	result := &Result{
		RunID:   uuid.NewString(),
		Symbol:  symbol,
		Mode:    cfg.Mode,
		Today:   model.CivilDate(today),
		Offsets: offsets,
	}
	logger := a.logger.With().Str("run_id", result.RunID).Str("symbol", symbol).Logger()

	idx := BuildIndex(bars)
	logger.Debug().Int("bars", idx.Len()).Int("anchors", len(anchors)).Msg("price index built")

	result.Fixed = ComputeFixed(idx, anchors, FixedConfig{Offsets: offsets, FallbackDays: cfg.FallbackDays}, today)
	result.RowHitPoints = make([]int, len(result.Fixed))
	for i, row := range result.Fixed {
		result.RowHitPoints[i] = HitPoint(row)
	}
	result.Cumulative = CumulativeHitPoint(result.Fixed, offsets)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gridStart := time.Now()
	grid := NewGrid(cfg.Grid)
	grid.SetProgressCallback(a.progressFunc)
	rows := grid.Compute(idx, anchors, today)
	result.GridAnchors = len(rows)
	logger.Debug().Int("rows", len(rows)).Dur("took", time.Since(gridStart)).Msg("combination grid computed")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stats []PairStatistic
	if cfg.ChunkSize > 0 {
		stats = AggregateParallel(rows, cfg.ChunkSize, cfg.Grid.Workers)
	} else {
		stats = Aggregate(rows)
	}
	result.PairCount = len(stats)

	rankCfg := cfg.Rank
	if rankCfg.SampleSize == 0 {
		rankCfg.SampleSize = float64(len(rows))
	}
	result.SampleSize = rankCfg.SampleSize

	if rankCfg.SampleSize > 0 {
		ranked, err := Rank(stats, rankCfg)
		if err != nil {
			return nil, fmt.Errorf("ranking %s: %w", symbol, err)
		}
		result.Ranked = ranked
	} else {
		result.Ranked = []RankedEntry{}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(start)
	if a.metrics != nil {
		a.metrics.ObserveRun(string(cfg.Mode), len(rows), len(stats), result.Elapsed)
	}
	logger.Debug().
		Int("pairs", len(stats)).
		Int("ranked", len(result.Ranked)).
		Dur("took", result.Elapsed).
		Msg("analysis complete")

	return result, nil
}
