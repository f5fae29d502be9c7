package clients

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outgoing Graph API calls
type RateLimiter interface {
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Allow reports whether a request may proceed now
	Allow() bool
	// PauseUntil blocks all callers until t, used after the API reports throttling
	PauseUntil(t time.Time)
}

// TokenBucketRateLimiter is a token bucket limiter with a pause window for
// server-side throttling signals.
type TokenBucketRateLimiter struct {
	limiter *rate.Limiter

	mu     sync.Mutex
	paused time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests with the given burst.
// A non-positive perSecond disables the token bucket but keeps pause support.
func NewRateLimiter(perSecond float64, burst int) *TokenBucketRateLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketRateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait implements RateLimiter
func (l *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	if d := l.pauseRemaining(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiter.Wait(ctx)
}

// Allow implements RateLimiter
func (l *TokenBucketRateLimiter) Allow() bool {
	if l.pauseRemaining() > 0 {
		return false
	}
	return l.limiter.Allow()
}

// PauseUntil implements RateLimiter. Earlier deadlines never shorten a pause.
func (l *TokenBucketRateLimiter) PauseUntil(t time.Time) {
	l.mu.Lock()
	if t.After(l.paused) {
		l.paused = t
	}
	l.mu.Unlock()
}

// SetRate changes the sustained rate
func (l *TokenBucketRateLimiter) SetRate(perSecond float64) {
	if perSecond <= 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Limit(perSecond))
}

func (l *TokenBucketRateLimiter) pauseRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Until(l.paused)
}
