/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides per-client admission control for incoming connections.
//
// The default algorithm is an exact sliding window log: every admitted request of a client
// is remembered with its timestamp, and a new request is admitted only while fewer than
// the configured number of requests happened within the trailing window.
// Rejected attempts are not recorded, so a client that keeps retrying is admitted again
// as soon as its oldest admitted request leaves the window.
//
// Approximate algorithms (sliding window counter, GCRA leaky bucket and token bucket) are
// available behind the same Limiter interface.
package ratelimit
