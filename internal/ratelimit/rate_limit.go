/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Rate describes the frequency of requests.
type Rate struct {
	Count    int
	Duration time.Duration
}

// Limiter interface defines the rate limiting contract.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}

// Algorithm names a rate limiting algorithm.
type Algorithm string

// Supported algorithms.
const (
	AlgorithmSlidingLog    Algorithm = "sliding_log"
	AlgorithmSlidingWindow Algorithm = "sliding_window"
	AlgorithmLeakyBucket   Algorithm = "leaky_bucket"
	AlgorithmTokenBucket   Algorithm = "token_bucket"
)

// Algorithms lists the names of all supported algorithms.
var Algorithms = []string{
	string(AlgorithmSlidingLog),
	string(AlgorithmSlidingWindow),
	string(AlgorithmLeakyBucket),
	string(AlgorithmTokenBucket),
}

// Params describes a limiter to be built by New.
type Params struct {
	Algorithm Algorithm
	Rate      Rate
	// MaxBurst is used by the leaky and token bucket algorithms only.
	MaxBurst int
	// MaxKeys bounds the number of tracked clients. Zero means no bound.
	MaxKeys int
}

// New creates a limiter for the given parameters.
func New(params Params) (Limiter, error) {
	if params.Rate.Count <= 0 || params.Rate.Duration <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d per %s", params.Rate.Count, params.Rate.Duration)
	}
	switch params.Algorithm {
	case AlgorithmSlidingLog, "":
		return NewSlidingLogLimiter(params.Rate.Duration, params.Rate.Count, SlidingLogOpts{MaxKeys: params.MaxKeys})
	case AlgorithmSlidingWindow:
		return NewSlidingWindowLimiter(params.Rate, params.MaxKeys)
	case AlgorithmLeakyBucket:
		return NewLeakyBucketLimiter(params.Rate, params.MaxBurst, params.MaxKeys)
	case AlgorithmTokenBucket:
		return NewTokenBucketLimiter(params.Rate, params.MaxBurst, params.MaxKeys)
	}
	return nil, fmt.Errorf("unknown rate limiting algorithm %q", params.Algorithm)
}
