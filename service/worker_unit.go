/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"time"
)

// ErrWorkerUnitStopTimeoutExceeded is returned when the worker does not finish within the graceful stop timeout.
var ErrWorkerUnitStopTimeoutExceeded = errors.New("worker unit stop timeout exceeded")

// WorkerUnit presents a Worker as a Unit. The worker's context is canceled on Stop.
type WorkerUnit struct {
	worker              Worker
	gracefulStopTimeout time.Duration
	ctx                 context.Context
	cancel              context.CancelFunc
	done                chan struct{}
}

// NewWorkerUnit creates a new WorkerUnit. Zero gracefulStopTimeout means waiting without limit.
func NewWorkerUnit(worker Worker, gracefulStopTimeout time.Duration) *WorkerUnit {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerUnit{
		worker:              worker,
		gracefulStopTimeout: gracefulStopTimeout,
		ctx:                 ctx,
		cancel:              cancel,
		done:                make(chan struct{}),
	}
}

// Start runs the worker and blocks until it finishes.
func (u *WorkerUnit) Start(fatalErr chan<- error) {
	defer close(u.done)
	if err := u.worker.Run(u.ctx); err != nil {
		fatalErr <- err
	}
}

// Stop cancels the worker's context and, when stopping gracefully, waits for the worker to return.
func (u *WorkerUnit) Stop(gracefully bool) error {
	u.cancel()
	if !gracefully {
		return nil
	}
	if u.gracefulStopTimeout == 0 {
		<-u.done
		return nil
	}
	select {
	case <-u.done:
		return nil
	case <-time.After(u.gracefulStopTimeout):
		return ErrWorkerUnitStopTimeoutExceeded
	}
}
