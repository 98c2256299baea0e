// Package ratelimit throttles market-data requests per provider.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = time.Minute
	maxBurst   = 10
)

// Limiter is a weighted token bucket with a 429 backoff
type Limiter struct {
	limiter *rate.Limiter
	name    string
	burst   int

	mu      sync.Mutex
	backoff time.Duration
}

// NewLimiter allows perMinute units of request weight per minute.
// Burst is a tenth of the budget, clamped to [1, 10].
func NewLimiter(name string, perMinute int) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if burst > maxBurst {
		burst = maxBurst
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		name:    name,
		burst:   burst,
		backoff: minBackoff,
	}
}

// Wait blocks for a weight-1 request
func (l *Limiter) Wait(ctx context.Context) error {
	return l.WaitN(ctx, 1)
}

// WaitN blocks for a request costing weight units. Weights above the
// burst are clamped so a heavy request can never deadlock.
func (l *Limiter) WaitN(ctx context.Context, weight int) error {
	if weight < 1 {
		weight = 1
	}
	if weight > l.burst {
		weight = l.burst
	}
	return l.limiter.WaitN(ctx, weight)
}

// Allow reports whether a weight-1 request may happen now
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SignalRateLimited doubles the backoff after a 429/418 response
func (l *Limiter) SignalRateLimited() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.backoff *= 2
	if l.backoff > maxBackoff {
		l.backoff = maxBackoff
	}
	return l.backoff
}

// ResetBackoff is called after a successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = minBackoff
}

// Backoff returns the current backoff duration
func (l *Limiter) Backoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}

// Sleep waits out the current backoff or until ctx is done
func (l *Limiter) Sleep(ctx context.Context) error {
	timer := time.NewTimer(l.Backoff())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Limiter) Name() string {
	return l.name
}

// Set holds one limiter per provider
type Set struct {
	limiters map[string]*Limiter
	mu       sync.RWMutex
}

func NewSet() *Set {
	return &Set{limiters: make(map[string]*Limiter)}
}

// Ensure returns the named limiter, creating it on first use
func (s *Set) Ensure(name string, perMinute int) *Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.limiters[name]; ok {
		return l
	}
	l := NewLimiter(name, perMinute)
	s.limiters[name] = l
	return l
}

func (s *Set) Get(name string) *Limiter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limiters[name]
}

// Wait waits on the named limiter; unknown names proceed immediately
func (s *Set) Wait(ctx context.Context, name string) error {
	l := s.Get(name)
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
