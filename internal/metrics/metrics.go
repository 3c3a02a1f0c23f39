package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for analysis runs and data fetches
type Collector struct {
	registry *prometheus.Registry

	Runs          *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	AnchorsPerRun prometheus.Histogram
	PairsPerRun   prometheus.Histogram

	ProviderCalls  *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them on a private registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventedge_runs_total",
				Help: "Completed analysis runs by event mode",
			},
			[]string{"mode"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventedge_run_duration_seconds",
				Help:    "Wall time of a full analysis run",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"mode"},
		),
		AnchorsPerRun: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventedge_run_anchors",
				Help:    "Realized anchors that produced a combination row",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		),
		PairsPerRun: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventedge_run_pairs",
				Help:    "Distinct (buy, sell) pairs aggregated per run",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
		),
		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventedge_provider_calls_total",
				Help: "Market data requests by provider and operation",
			},
			[]string{"provider", "op"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventedge_provider_errors_total",
				Help: "Failed market data requests by provider and operation",
			},
			[]string{"provider", "op"},
		),
	}

	c.registry.MustRegister(
		c.Runs,
		c.RunDuration,
		c.AnchorsPerRun,
		c.PairsPerRun,
		c.ProviderCalls,
		c.ProviderErrors,
	)
	return c
}

// ObserveRun records one completed analysis run
func (c *Collector) ObserveRun(mode string, anchors, pairs int, elapsed time.Duration) {
	c.Runs.WithLabelValues(mode).Inc()
	c.RunDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	c.AnchorsPerRun.Observe(float64(anchors))
	c.PairsPerRun.Observe(float64(pairs))
}

// ObserveProviderCall records one data request and whether it failed
func (c *Collector) ObserveProviderCall(provider, op string, err error) {
	c.ProviderCalls.WithLabelValues(provider, op).Inc()
	if err != nil {
		c.ProviderErrors.WithLabelValues(provider, op).Inc()
	}
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collected metrics in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
