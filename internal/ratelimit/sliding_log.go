/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const defaultSlidingLogShards = 16

// SlidingLogOpts contains optional parameters for SlidingLogLimiter.
type SlidingLogOpts struct {
	// Now is the clock. time.Now is used by default.
	Now func() time.Time
	// Shards is the number of independently locked partitions of the key space.
	// It's rounded up to a power of two. Default is 16.
	Shards int
	// MaxKeys bounds the number of tracked clients with LRU eviction. Zero means no bound.
	// The bound is split evenly between shards.
	MaxKeys int
}

type slidingLogShard struct {
	mu   sync.Mutex
	logs keyStore[[]time.Time]
}

// SlidingLogLimiter admits at most maxRequests requests of every client within any trailing window.
type SlidingLogLimiter struct {
	window      time.Duration
	maxRequests int
	now         func() time.Time
	shards      []*slidingLogShard
	shardMask   uint64
}

var _ Limiter = (*SlidingLogLimiter)(nil)

// NewSlidingLogLimiter creates a new sliding window log limiter.
func NewSlidingLogLimiter(window time.Duration, maxRequests int, opts SlidingLogOpts) (*SlidingLogLimiter, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}
	if maxRequests <= 0 {
		return nil, fmt.Errorf("max requests must be positive, got %d", maxRequests)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	shardsNum := 1
	for shardsNum < opts.Shards || (opts.Shards <= 0 && shardsNum < defaultSlidingLogShards) {
		shardsNum <<= 1
	}
	maxKeysPerShard := 0
	if opts.MaxKeys > 0 {
		maxKeysPerShard = (opts.MaxKeys + shardsNum - 1) / shardsNum
	}

	l := &SlidingLogLimiter{
		window:      window,
		maxRequests: maxRequests,
		now:         opts.Now,
		shards:      make([]*slidingLogShard, shardsNum),
		shardMask:   uint64(shardsNum - 1),
	}
	for i := range l.shards {
		store, err := newKeyStore[[]time.Time](maxKeysPerShard)
		if err != nil {
			return nil, err
		}
		l.shards[i] = &slidingLogShard{logs: store}
	}
	return l, nil
}

// IsRateLimited reports whether the request of the client must be rejected.
// An admitted request is recorded, a rejected one is not.
func (l *SlidingLogLimiter) IsRateLimited(clientID string) bool {
	allow, _ := l.admit(clientID)
	return !allow
}

// Allow implements Limiter. On rejection retryAfter is the time left until the oldest
// recorded request of the client leaves the window.
func (l *SlidingLogLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	allow, retryAfter = l.admit(key)
	return allow, retryAfter, nil
}

func (l *SlidingLogLimiter) admit(key string) (bool, time.Duration) {
	shard := l.shards[xxhash.Sum64String(key)&l.shardMask]
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := l.now()
	entries, _ := shard.logs.Get(key)
	entries = l.prune(entries, now)
	if len(entries) >= l.maxRequests {
		shard.logs.Put(key, entries)
		return false, l.retryAfter(entries, now)
	}
	shard.logs.Put(key, append(entries, now))
	return true, 0
}

// prune drops entries that are at least window old, reusing the backing array.
func (l *SlidingLogLimiter) prune(entries []time.Time, now time.Time) []time.Time {
	kept := entries[:0]
	for _, t := range entries {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	return kept
}

func (l *SlidingLogLimiter) hasRecent(entries []time.Time, now time.Time) bool {
	for _, t := range entries {
		if now.Sub(t) < l.window {
			return true
		}
	}
	return false
}

func (l *SlidingLogLimiter) retryAfter(entries []time.Time, now time.Time) time.Duration {
	oldest := entries[0]
	for _, t := range entries[1:] {
		if t.Before(oldest) {
			oldest = t
		}
	}
	if d := oldest.Add(l.window).Sub(now); d > 0 {
		return d
	}
	return 0
}

// Sweep forgets clients that have no requests within the window and returns their number.
func (l *SlidingLogLimiter) Sweep() int {
	var removed int
	for _, shard := range l.shards {
		shard.mu.Lock()
		now := l.now()
		var idle []string
		shard.logs.Range(func(key string, entries []time.Time) {
			if !l.hasRecent(entries, now) {
				idle = append(idle, key)
			}
		})
		for _, key := range idle {
			shard.logs.Delete(key)
		}
		removed += len(idle)
		shard.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *SlidingLogLimiter) Len() int {
	var n int
	for _, shard := range l.shards {
		shard.mu.Lock()
		n += shard.logs.Len()
		shard.mu.Unlock()
	}
	return n
}
