// internal/utils/rate_limiter.go
package utils

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps the golang.org/x/time/rate limiter. The task scheduler
// uses it to pace task starts so a burst of due tasks cannot hammer the
// browser all at once.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a rate limiter allowing eventsPerSecond sustained
// events with no burst headroom.
func NewRateLimiter(eventsPerSecond float64) *RateLimiter {
	return NewRateLimiterWithBurst(eventsPerSecond, 1)
}

// NewRateLimiterWithBurst creates a rate limiter with explicit burst capacity.
func NewRateLimiterWithBurst(eventsPerSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
	}
}

// Wait blocks until the rate limiter allows the next event
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// SetLimit changes the sustained rate
func (rl *RateLimiter) SetLimit(eventsPerSecond float64) {
	rl.limiter.SetLimit(rate.Limit(eventsPerSecond))
}

// SetBurst changes the burst size
func (rl *RateLimiter) SetBurst(burst int) {
	rl.limiter.SetBurst(burst)
}
