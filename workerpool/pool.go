/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package workerpool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/atomic"

	"github.com/acronis/go-rawhttp/log"
)

// ErrPoolClosed is returned by Submit after Shutdown was called.
var ErrPoolClosed = errors.New("worker pool is closed")

// ErrInvalidSize is returned by New when the pool size is not positive.
var ErrInvalidSize = errors.New("worker pool size must be positive")

// Job is a unit of work executed by one of the pool's workers.
type Job func()

// Option configures a Pool.
type Option func(p *Pool)

// WithMetrics makes the pool report its state to the given Prometheus collectors.
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(p *Pool) {
		p.metrics = metrics
	}
}

// Pool is a fixed set of workers consuming jobs from a shared FIFO queue.
type Pool struct {
	size    int
	queue   *jobQueue
	logger  log.FieldLogger
	metrics *PrometheusMetrics

	closeMu sync.RWMutex
	closed  bool

	workersWG    sync.WaitGroup
	shutdownOnce sync.Once

	executed atomic.Uint64
	panicked atomic.Uint64
	busy     atomic.Int32
}

// New creates a pool and starts size workers.
func New(size int, logger log.FieldLogger, opts ...Option) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	p := &Pool{size: size, queue: newJobQueue(), logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	p.workersWG.Add(size)
	for i := 0; i < size; i++ {
		go p.runWorker(i)
	}
	p.logger.Info("worker pool started", log.Int("workers", size))
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Submit enqueues the job. It never blocks on busy workers.
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return errors.New("nil job")
	}
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	if p.metrics != nil {
		p.metrics.QueuedJobs.Inc()
	}
	p.queue.push(message{job: job})
	return nil
}

// Shutdown stops accepting new jobs and blocks until all workers finish the jobs
// queued before the call and exit. Subsequent calls return immediately.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.closeMu.Lock()
		p.closed = true
		p.closeMu.Unlock()

		p.logger.Info("shutting down worker pool", log.Int("queued_jobs", p.queue.len()))
		for i := 0; i < p.size; i++ {
			p.queue.push(message{})
		}
		p.workersWG.Wait()
		p.logger.Info("worker pool stopped",
			log.Int64("executed_jobs", int64(p.executed.Load())),
			log.Int64("panicked_jobs", int64(p.panicked.Load())))
	})
}

// Stats returns the number of executed jobs and the number of jobs that panicked.
func (p *Pool) Stats() (executed, panicked uint64) {
	return p.executed.Load(), p.panicked.Load()
}

// BusyWorkers returns the number of workers executing a job right now.
func (p *Pool) BusyWorkers() int {
	return int(p.busy.Load())
}

// MustRegisterMetrics registers the pool's metrics, if any.
func (p *Pool) MustRegisterMetrics() {
	if p.metrics != nil {
		p.metrics.MustRegister()
	}
}

// UnregisterMetrics unregisters the pool's metrics, if any.
func (p *Pool) UnregisterMetrics() {
	if p.metrics != nil {
		p.metrics.Unregister()
	}
}

func (p *Pool) runWorker(id int) {
	defer p.workersWG.Done()
	logger := p.logger.With(log.Int("worker", id))
	for {
		msg := p.queue.pop()
		if msg.isTerminate() {
			logger.Debug("worker terminated")
			return
		}
		if p.metrics != nil {
			p.metrics.QueuedJobs.Dec()
		}
		p.execute(msg.job, logger)
	}
}

func (p *Pool) execute(job Job, logger log.FieldLogger) {
	p.busy.Inc()
	if p.metrics != nil {
		p.metrics.BusyWorkers.Inc()
	}
	defer func() {
		if rec := recover(); rec != nil {
			p.panicked.Inc()
			if p.metrics != nil {
				p.metrics.PanicsTotal.Inc()
			}
			stack := make([]byte, 8192)
			stack = stack[:runtime.Stack(stack, false)]
			logger.Error(fmt.Sprintf("job panicked: %+v", rec), log.Bytes("stack", stack))
		}
		p.executed.Inc()
		p.busy.Dec()
		if p.metrics != nil {
			p.metrics.ExecutedTotal.Inc()
			p.metrics.BusyWorkers.Dec()
		}
	}()
	job()
}
