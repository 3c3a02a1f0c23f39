package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"eventedge/internal/engine"
	"eventedge/pkg/model"
)

// Config represents the application configuration
type Config struct {
	API      APIConfig      `yaml:"api"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Engine   EngineConfig   `yaml:"engine"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// APIConfig holds API provider configurations. Yahoo needs no key and is
// always tried last.
type APIConfig struct {
	Finnhub ProviderConfig `yaml:"finnhub"`
	EODHD   ProviderConfig `yaml:"eodhd"`
}

// ProviderConfig holds individual provider settings
type ProviderConfig struct {
	Key       string `yaml:"key"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute
}

// AnalysisConfig holds the event-study parameters
type AnalysisConfig struct {
	Mode     string `yaml:"mode"` // earnings | dividend
	PastOnly bool   `yaml:"past_only"`
	// Buy and Sell override the ranges implied by PastOnly
	Buy          *engine.Range `yaml:"buy,omitempty"`
	Sell         *engine.Range `yaml:"sell,omitempty"`
	HoldMin      int           `yaml:"hold_min"`
	HoldMax      int           `yaml:"hold_max"`
	SampleSize   float64       `yaml:"sample_size"` // 0 = number of realized anchors
	Sort         []string      `yaml:"sort"`
	Top          int           `yaml:"top"` // negative keeps every row
	FallbackDays int           `yaml:"fallback_days"`
}

// EngineConfig holds computation settings
type EngineConfig struct {
	Workers   int `yaml:"workers"`
	ChunkSize int `yaml:"chunk_size"`
}

// ScannerConfig holds scanner settings
type ScannerConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"` // per symbol
}

// CacheConfig holds the shared Redis cache settings
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"` // empty keeps the cache in memory only
	TTL       time.Duration `yaml:"ttl"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Finnhub: ProviderConfig{
				Key:       os.Getenv("FINNHUB_API_KEY"),
				RateLimit: 60,
			},
			EODHD: ProviderConfig{
				Key:       os.Getenv("EODHD_API_KEY"),
				RateLimit: 600,
			},
		},
		Analysis: AnalysisConfig{
			Mode:    string(model.EventEarnings),
			HoldMin: 1,
			HoldMax: engine.DefaultHoldMax,
			Sort:    []string{string(engine.SortHitPoint), string(engine.SortAverageReturn)},
			Top:     100,
		},
		Engine: EngineConfig{
			Workers:   runtime.NumCPU(),
			ChunkSize: 16,
		},
		Scanner: ScannerConfig{
			Workers: 4,
			Timeout: 2 * time.Minute,
		},
		Cache: CacheConfig{
			RedisAddr: os.Getenv("REDIS_ADDR"),
			TTL:       12 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if file doesn't exist
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Override with environment variables if set
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		cfg.API.Finnhub.Key = key
	}
	if key := os.Getenv("EODHD_API_KEY"); key != "" {
		cfg.API.EODHD.Key = key
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := model.ParseEventKind(c.Analysis.Mode); err != nil {
		return err
	}
	if c.Analysis.HoldMin > c.Analysis.HoldMax {
		return fmt.Errorf("%w: hold_min %d > hold_max %d", engine.ErrInvalidRange, c.Analysis.HoldMin, c.Analysis.HoldMax)
	}
	if c.Analysis.SampleSize < 0 {
		return fmt.Errorf("%w: sample_size must be >= 0", engine.ErrInvalidSampleSize)
	}
	if c.Analysis.FallbackDays < 0 {
		return fmt.Errorf("fallback_days must be >= 0")
	}
	if _, err := engine.ParseSortKeys(c.Analysis.Sort); err != nil {
		return err
	}
	buy, sell := c.Ranges()
	if err := (engine.GridConfig{Buy: buy, Sell: sell}).Validate(); err != nil {
		return err
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine workers must be at least 1")
	}
	if c.Engine.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be >= 0")
	}
	if c.Scanner.Workers < 1 {
		return fmt.Errorf("scanner workers must be at least 1")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must be >= 0")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// Ranges returns the buy and sell offset ranges: explicit ranges win,
// otherwise past_only selects the past-only pair
func (c *Config) Ranges() (buy, sell engine.Range) {
	buy, sell = engine.FutureBuyRange, engine.FutureSellRange
	if c.Analysis.PastOnly {
		buy, sell = engine.PastOnlyBuyRange, engine.PastOnlySellRange
	}
	if c.Analysis.Buy != nil {
		buy = *c.Analysis.Buy
	}
	if c.Analysis.Sell != nil {
		sell = *c.Analysis.Sell
	}
	return buy, sell
}

// AnalyzerConfig builds the engine configuration for a run as of today
func (c *Config) AnalyzerConfig(today time.Time) (engine.Config, error) {
	if err := c.Validate(); err != nil {
		return engine.Config{}, err
	}
	mode, _ := model.ParseEventKind(c.Analysis.Mode)
	keys, _ := engine.ParseSortKeys(c.Analysis.Sort)
	buy, sell := c.Ranges()

	return engine.Config{
		Mode:         mode,
		FallbackDays: c.Analysis.FallbackDays,
		Grid: engine.GridConfig{
			Buy:     buy,
			Sell:    sell,
			Workers: c.Engine.Workers,
		},
		Rank: engine.RankConfig{
			HoldMin:    c.Analysis.HoldMin,
			HoldMax:    c.Analysis.HoldMax,
			SortKeys:   keys,
			TopN:       c.Analysis.Top,
			SampleSize: c.Analysis.SampleSize,
		},
		ChunkSize: c.Engine.ChunkSize,
		Today:     today,
	}, nil
}
