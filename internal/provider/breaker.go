package provider

import (
	"context"
	"errors"
	"time"

	cb "github.com/sony/gobreaker"

	"eventedge/pkg/model"
)

// CallObserver records the outcome of each upstream call
type CallObserver interface {
	ObserveProviderCall(provider, op string, err error)
}

// BreakerProvider guards a Provider with a circuit breaker so a failing
// upstream is skipped by the fallback chain instead of being retried on
// every symbol of a scan
type BreakerProvider struct {
	inner    Provider
	breaker  *cb.CircuitBreaker
	observer CallObserver
}

// BreakerSettings tunes when the breaker trips and how long it stays open
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// DefaultBreakerSettings trips after 3 consecutive failures for a minute
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: 60 * time.Second}
}

// NewBreakerProvider wraps inner. observer may be nil.
func NewBreakerProvider(inner Provider, s BreakerSettings, observer CallObserver) *BreakerProvider {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = DefaultBreakerSettings().ConsecutiveFailures
	}
	st := cb.Settings{Name: inner.Name()}
	st.Interval = 60 * time.Second
	st.Timeout = s.OpenTimeout
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= s.ConsecutiveFailures {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.25
	}
	// unsupported kinds and caller cancellation say nothing about upstream health
	st.IsSuccessful = func(err error) bool {
		return err == nil ||
			errors.Is(err, ErrNotSupported) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded)
	}

	return &BreakerProvider{
		inner:    inner,
		breaker:  cb.NewCircuitBreaker(st),
		observer: observer,
	}
}

func (p *BreakerProvider) Name() string      { return p.inner.Name() }
func (p *BreakerProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *BreakerProvider) RateLimit() int    { return p.inner.RateLimit() }

// State reports the breaker state (closed, half-open, open)
func (p *BreakerProvider) State() string {
	return p.breaker.State().String()
}

func (p *BreakerProvider) observe(op string, err error) {
	if p.observer != nil {
		p.observer.ObserveProviderCall(p.inner.Name(), op, err)
	}
}

func (p *BreakerProvider) wrapOpen(err error) error {
	if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
		return &ProviderError{Provider: p.inner.Name(), Err: err, Retryable: true}
	}
	return err
}

// GetDailyBars calls through the breaker
func (p *BreakerProvider) GetDailyBars(ctx context.Context, symbol string, from time.Time) ([]model.PriceBar, error) {
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.inner.GetDailyBars(ctx, symbol, from)
	})
	p.observe("bars", err)
	if err != nil {
		return nil, p.wrapOpen(err)
	}
	return out.([]model.PriceBar), nil
}

// GetAnchors calls through the breaker
func (p *BreakerProvider) GetAnchors(ctx context.Context, symbol string, kind model.EventKind) ([]time.Time, error) {
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.inner.GetAnchors(ctx, symbol, kind)
	})
	p.observe("anchors", err)
	if err != nil {
		return nil, p.wrapOpen(err)
	}
	return out.([]time.Time), nil
}
