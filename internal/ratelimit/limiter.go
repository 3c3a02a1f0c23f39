package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 2 * time.Minute
)

// Limiter paces requests to one upstream API. After a 429 the next Wait
// also sleeps for the current backoff, which doubles on every further 429
// and resets after a successful response.
type Limiter struct {
	limiter   *rate.Limiter
	name      string
	perMinute int

	mu        sync.Mutex
	backoff   time.Duration
	penalized bool
	initial   time.Duration
	maxWait   time.Duration
}

// NewLimiter creates a limiter allowing perMinute requests per minute.
// A non-positive rate disables pacing.
func NewLimiter(name string, perMinute int) *Limiter {
	var lim *rate.Limiter
	if perMinute <= 0 {
		lim = rate.NewLimiter(rate.Inf, 1)
	} else {
		// burst of 1/10th of the per-minute budget, between 1 and 5
		burst := perMinute / 10
		if burst < 1 {
			burst = 1
		}
		if burst > 5 {
			burst = 5
		}
		lim = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
	}

	return &Limiter{
		limiter:   lim,
		name:      name,
		perMinute: perMinute,
		backoff:   initialBackoff,
		initial:   initialBackoff,
		maxWait:   maxBackoff,
	}
}

// Wait blocks until a token is available or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	if d := l.pendingBackoff(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiter.Wait(ctx)
}

func (l *Limiter) pendingBackoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.penalized {
		return 0
	}
	return l.backoff
}

// Allow reports whether a request may happen now without waiting
func (l *Limiter) Allow() bool {
	if l.pendingBackoff() > 0 {
		return false
	}
	return l.limiter.Allow()
}

// SignalRateLimited records a 429 response
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.penalized {
		l.backoff *= 2
		if l.backoff > l.maxWait {
			l.backoff = l.maxWait
		}
	}
	l.penalized = true
}

// ResetBackoff clears the penalty after a successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = l.initial
	l.penalized = false
}

// GetBackoff returns the delay the next Wait adds, zero when not penalized
func (l *Limiter) GetBackoff() time.Duration {
	return l.pendingBackoff()
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}

// PerMinute returns the configured rate
func (l *Limiter) PerMinute() int {
	return l.perMinute
}
