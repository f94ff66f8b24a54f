/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"

	"github.com/acronis/go-rawhttp/httpserver/middleware"
	"github.com/acronis/go-rawhttp/internal/ratelimit"
	"github.com/acronis/go-rawhttp/log"
	"github.com/acronis/go-rawhttp/retry"
	"github.com/acronis/go-rawhttp/service"
	"github.com/acronis/go-rawhttp/workerpool"
)

// ErrShutdownTimeoutExceeded is returned by Stop when in-flight connections were not served in time.
var ErrShutdownTimeoutExceeded = errors.New("application HTTP server shutdown timeout exceeded")

// Temporary accept errors (e.g. too many open files) are retried forever with delays growing up to 1s.
// Only non-temporary accept errors stop the server.
const (
	defaultAcceptRetryInitialInterval = 5 * time.Millisecond
	defaultAcceptRetryMaxInterval     = time.Second
)

// Opts represents options for creating HTTPServer.
type Opts struct {
	// Handler serves parsed requests. When nil, a router created by NewRouter with Routes is used.
	Handler http.Handler
	// Routes registers application routes in the default router.
	Routes func(router chi.Router)
	// Limiter overrides the limiter built from the rate limiting configuration.
	Limiter ratelimit.Limiter
	// Listener is a pre-configured network listener to use instead of creating a new one.
	Listener net.Listener
	// MetricsNamespace is a namespace for all Prometheus metrics of the server.
	MetricsNamespace string
	// SessionCookieName is the name of the cookie issued to clients without cookies.
	SessionCookieName string
	// AcceptRetryPolicy is used for temporary accept errors. By default, they are retried without limit.
	AcceptRetryPolicy retry.Policy
}

// HTTPServer accepts TCP connections and hands each of them to the worker pool,
// where the Dispatcher serves exactly one request and closes the connection.
// It implements service.Unit and service.MetricsRegisterer interfaces.
type HTTPServer struct {
	Address         string
	Logger          log.FieldLogger
	ShutdownTimeout time.Duration
	Dispatcher      *Dispatcher
	Pool            *workerpool.Pool
	// Limiter is nil when rate limiting is disabled.
	Limiter ratelimit.Limiter

	acceptRetryPolicy retry.Policy

	mu         sync.Mutex
	listener   net.Listener
	closing    atomic.Bool
	port       atomic.Int32
	acceptDone chan struct{}

	connMetrics    *ConnectionMetrics
	httpReqMetrics *middleware.HTTPRequestMetricsCollector
}

var _ service.Unit = (*HTTPServer)(nil)
var _ service.MetricsRegisterer = (*HTTPServer)(nil)

// New creates a new HTTPServer with its worker pool, rate limiter and dispatcher.
// An error is returned for a non-positive number of workers or invalid rate limiting parameters.
func New(cfg *Config, logger log.FieldLogger, opts Opts) (*HTTPServer, error) { //nolint // hugeParam: opts is heavy, it's ok in this case.
	limiter := opts.Limiter
	if limiter == nil && cfg.RateLimit.Enabled {
		var err error
		if limiter, err = ratelimit.New(cfg.RateLimit.LimiterParams()); err != nil {
			return nil, fmt.Errorf("create rate limiter: %w", err)
		}
	}

	pool, err := workerpool.New(cfg.Workers, logger, workerpool.WithMetrics(workerpool.NewPrometheusMetrics(opts.MetricsNamespace)))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	s := &HTTPServer{
		Address:           cfg.Address,
		Logger:            logger,
		ShutdownTimeout:   time.Duration(cfg.Timeouts.Shutdown),
		Pool:              pool,
		Limiter:           limiter,
		acceptRetryPolicy: opts.AcceptRetryPolicy,
		listener:          opts.Listener,
		connMetrics:       NewConnectionMetrics(opts.MetricsNamespace),
	}
	if s.acceptRetryPolicy == nil {
		s.acceptRetryPolicy = retry.ExponentialBackoffPolicy{
			InitialInterval: defaultAcceptRetryInitialInterval,
			MaxInterval:     defaultAcceptRetryMaxInterval,
		}
	}

	handler := opts.Handler
	if handler == nil {
		s.httpReqMetrics = middleware.NewHTTPRequestMetricsCollector(opts.MetricsNamespace)
		handler = NewRouter(logger, RouterOpts{MetricsCollector: s.httpReqMetrics, Routes: opts.Routes})
	}

	s.Dispatcher = NewDispatcher(handler, logger, DispatcherOpts{
		Limiter:           limiter,
		MaxBodySize:       int(cfg.Limits.MaxBodySize),
		SessionCookieName: opts.SessionCookieName,
		Metrics:           s.connMetrics,
	})
	return s, nil
}

// Start listens and runs the accept loop in a blocking way.
// It's supposed that this method will be called in a separate goroutine.
// If a fatal error occurs, it will be sent to the fatalError channel.
func (s *HTTPServer) Start(fatalError chan<- error) {
	logger := s.Logger.With(
		log.String("address", s.Address),
		log.Int("workers", s.Pool.Size()),
		log.Duration("shutdown_timeout", s.ShutdownTimeout),
	)
	logger.Info("starting application HTTP server...")

	listener, done, err := s.listen()
	if err != nil {
		logger.Error("application HTTP server error", log.Error(err))
		fatalError <- err
		return
	}
	defer close(done)

	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port.Store(int32(tcpAddr.Port))
	}

	for {
		conn, acceptErr := s.accept(listener, logger)
		if acceptErr != nil {
			if s.closing.Load() {
				logger.Info("application HTTP server closed")
				return
			}
			logger.Error("application HTTP server error", log.Error(acceptErr))
			fatalError <- acceptErr
			return
		}

		if submitErr := s.Pool.Submit(func() { s.Dispatcher.ServeConn(conn) }); submitErr != nil {
			_ = conn.Close()
			if s.closing.Load() {
				logger.Info("application HTTP server closed")
				return
			}
			logger.Error("application HTTP server error", log.Error(submitErr))
			fatalError <- submitErr
			return
		}
	}
}

func (s *HTTPServer) listen() (net.Listener, chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing.Load() {
		return nil, nil, net.ErrClosed
	}
	if s.listener == nil {
		listener, err := net.Listen("tcp", s.Address)
		if err != nil {
			return nil, nil, err
		}
		s.listener = listener
	}
	s.acceptDone = make(chan struct{})
	return s.listener, s.acceptDone, nil
}

func (s *HTTPServer) accept(listener net.Listener, logger log.FieldLogger) (net.Conn, error) {
	var conn net.Conn
	notify := func(err error, delay time.Duration) {
		logger.Warn("accepting connection failed, retrying", log.Error(err), log.Duration("delay", delay))
	}
	err := retry.DoWithRetry(context.Background(), s.acceptRetryPolicy, retry.IsTemporaryNetError, notify,
		func(ctx context.Context) error {
			var err error
			conn, err = listener.Accept()
			return err
		})
	return conn, err
}

// Stop closes the listener and shuts the worker pool down.
// Gracefully, it waits (up to ShutdownTimeout) until all accepted connections are served.
func (s *HTTPServer) Stop(gracefully bool) error {
	s.closing.Store(true)

	s.mu.Lock()
	listener, done := s.listener, s.acceptDone
	s.mu.Unlock()

	if gracefully {
		s.Logger.Info("shutting down application HTTP server...", log.Duration("timeout", s.ShutdownTimeout))
	} else {
		s.Logger.Info("closing application HTTP server...")
	}

	if listener != nil {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.Logger.Error("application HTTP server closing error", log.Error(err))
			return err
		}
	}
	if done != nil {
		<-done // Wait for the accept loop to exit.
	}

	poolDone := make(chan struct{})
	go func() {
		s.Pool.Shutdown()
		close(poolDone)
	}()
	if !gracefully {
		return nil
	}

	select {
	case <-poolDone:
		s.Logger.Info("application HTTP server shut down")
		return nil
	case <-time.After(s.ShutdownTimeout):
		s.Logger.Error("application HTTP server shutting down error", log.Error(ErrShutdownTimeoutExceeded))
		return ErrShutdownTimeoutExceeded
	}
}

// MustRegisterMetrics registers metrics in Prometheus client and panics if any error occurs.
func (s *HTTPServer) MustRegisterMetrics() {
	s.connMetrics.MustRegister()
	s.Pool.MustRegisterMetrics()
	if s.httpReqMetrics != nil {
		s.httpReqMetrics.MustRegister()
	}
}

// UnregisterMetrics unregisters metrics in Prometheus client.
func (s *HTTPServer) UnregisterMetrics() {
	s.connMetrics.Unregister()
	s.Pool.UnregisterMetrics()
	if s.httpReqMetrics != nil {
		s.httpReqMetrics.Unregister()
	}
}

// GetPort returns the TCP port the server listens on (0 until the listener is ready).
func (s *HTTPServer) GetPort() int {
	return int(s.port.Load())
}
