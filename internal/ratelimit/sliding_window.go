/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
)

// SlidingWindowLimiter implements the approximate sliding window counter algorithm.
// It keeps two counters per client instead of a full log of timestamps.
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	limiters keyStore[*slidingwindow.Limiter]
	maxRate  Rate
}

var _ Limiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(maxRate Rate, maxKeys int) (*SlidingWindowLimiter, error) {
	store, err := newKeyStore[*slidingwindow.Limiter](maxKeys)
	if err != nil {
		return nil, err
	}
	return &SlidingWindowLimiter{limiters: store, maxRate: maxRate}, nil
}

func (l *SlidingWindowLimiter) getLimiter(key string) *slidingwindow.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters.Get(key); ok {
		return lim
	}
	lim, _ := slidingwindow.NewLimiter(
		l.maxRate.Duration, int64(l.maxRate.Count), func() (slidingwindow.Window, slidingwindow.StopFunc) {
			return slidingwindow.NewLocalWindow()
		})
	l.limiters.Put(key, lim)
	return lim
}

// Allow checks if the request should be allowed based on the rate limit.
func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	if l.getLimiter(key).Allow() {
		return true, 0, nil
	}
	now := time.Now()
	retryAfter = now.Truncate(l.maxRate.Duration).Add(l.maxRate.Duration).Sub(now)
	return false, retryAfter, nil
}
