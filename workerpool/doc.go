/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package workerpool provides a fixed-size pool of goroutines that execute submitted jobs
// in FIFO order. The queue is unbounded, so submitting never blocks.
// Shutdown delivers one terminate signal per worker behind all previously queued jobs,
// which means every job accepted before Shutdown is executed.
package workerpool
