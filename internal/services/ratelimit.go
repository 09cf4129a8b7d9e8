package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	backoffFactor = 1.5
	maxBackoff    = 2 * time.Second
)

// RateLimiter paces catalog calls. It combines a steady requests-per-
// second limit with an adaptive backoff that grows on throttling
// responses and resets on success. An explicit value rather than
// process state, so independent sessions can be tested in isolation.
type RateLimiter struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	backoff time.Duration
	holdOff time.Time // honor server-provided retry-after
}

// NewRateLimiter builds a limiter allowing rps requests per second.
func NewRateLimiter(rps float64) *RateLimiter {
	if rps <= 0 {
		rps = 5
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until the next call is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	delay := r.backoff
	if until := time.Until(r.holdOff); until > delay {
		delay = until
	}
	r.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}

// OnThrottled grows the backoff after a throttling response. A
// server-provided retry-after duration is honored in full; the capped
// backoff applies on top for subsequent calls.
func (r *RateLimiter) OnThrottled(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backoff == 0 {
		r.backoff = 200 * time.Millisecond
	} else {
		r.backoff = time.Duration(float64(r.backoff) * backoffFactor)
	}
	if r.backoff > maxBackoff {
		r.backoff = maxBackoff
	}
	if retryAfter > 0 {
		r.holdOff = time.Now().Add(retryAfter)
	}
}

// OnSuccess resets the adaptive backoff.
func (r *RateLimiter) OnSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backoff = 0
	r.holdOff = time.Time{}
}

// Backoff exposes the current backoff delay.
func (r *RateLimiter) Backoff() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backoff
}
