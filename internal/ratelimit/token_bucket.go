/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter keeps a token bucket per client. The bucket is refilled at the configured rate
// and holds up to maxBurst+1 tokens.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limiters keyStore[*rate.Limiter]
	limit    rate.Limit
	burst    int
}

var _ Limiter = (*TokenBucketLimiter)(nil)

// NewTokenBucketLimiter creates a new token bucket rate limiter.
func NewTokenBucketLimiter(maxRate Rate, maxBurst, maxKeys int) (*TokenBucketLimiter, error) {
	store, err := newKeyStore[*rate.Limiter](maxKeys)
	if err != nil {
		return nil, err
	}
	return &TokenBucketLimiter{
		limiters: store,
		limit:    rate.Limit(float64(maxRate.Count) / maxRate.Duration.Seconds()),
		burst:    maxBurst + 1,
	}, nil
}

func (l *TokenBucketLimiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Put(key, lim)
	return lim
}

// Allow checks if the request should be allowed based on the rate limit.
func (l *TokenBucketLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	now := time.Now()
	r := l.getLimiter(key).ReserveN(now, 1)
	if !r.OK() {
		return false, 0, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}
