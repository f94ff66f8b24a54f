/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"
)

// LeakyBucketLimiter admits clients by GCRA (Generic Cell Rate Algorithm).
// A client may send maxBurst requests above the steady rate, after that requests are admitted
// one per emission interval (rate duration divided by rate count).
type LeakyBucketLimiter struct {
	gcra *throttled.GCRARateLimiterCtx
}

var _ Limiter = (*LeakyBucketLimiter)(nil)

// NewLeakyBucketLimiter creates a GCRA based limiter. Zero maxKeys means no bound on tracked clients.
func NewLeakyBucketLimiter(rate Rate, maxBurst, maxKeys int) (*LeakyBucketLimiter, error) {
	if maxBurst < 0 {
		return nil, fmt.Errorf("max burst must not be negative, got %d", maxBurst)
	}
	if maxKeys < 0 {
		return nil, fmt.Errorf("max keys must not be negative, got %d", maxKeys)
	}
	store, err := memstore.NewCtx(maxKeys)
	if err != nil {
		return nil, fmt.Errorf("create GCRA client store: %w", err)
	}
	gcra, err := throttled.NewGCRARateLimiterCtx(store, throttled.RateQuota{
		MaxRate:  throttled.PerDuration(rate.Count, rate.Duration),
		MaxBurst: maxBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("create GCRA limiter: %w", err)
	}
	return &LeakyBucketLimiter{gcra: gcra}, nil
}

// Allow takes one cell from the client's bucket.
// RetryAfter is zero for admitted requests.
func (l *LeakyBucketLimiter) Allow(ctx context.Context, clientID string) (allow bool, retryAfter time.Duration, err error) {
	limited, res, err := l.gcra.RateLimitCtx(ctx, clientID, 1)
	if err != nil {
		return false, 0, fmt.Errorf("GCRA admission of client %q: %w", clientID, err)
	}
	if !limited {
		return true, 0, nil
	}
	if res.RetryAfter < 0 {
		return false, 0, nil
	}
	return false, res.RetryAfter, nil
}
