/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package profserver

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/acronis/go-rawhttp/httpserver"
	"github.com/acronis/go-rawhttp/httpserver/middleware"
	"github.com/acronis/go-rawhttp/log"
	"github.com/acronis/go-rawhttp/service"
)

// ProfServer represents HTTP server for profiling. pprof is used under the hood.
// Requests are served by the same connection-per-request server as the application, with a single worker
// and without rate limiting.
// It implements service.Unit interface.
type ProfServer struct {
	*httpserver.HTTPServer
}

var _ service.Unit = (*ProfServer)(nil)

// New creates a new HTTP server (pprof) for profiling.
func New(cfg *Config, logger log.FieldLogger) (*ProfServer, error) {
	logger = logger.With(log.String("server", "profiling"))

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID(),
		middleware.Logging(logger),
	)
	router.Mount("/debug", chimiddleware.Profiler())

	srvCfg := httpserver.NewDefaultConfig()
	srvCfg.Address = cfg.Address
	srvCfg.Workers = 1
	srvCfg.RateLimit.Enabled = false
	srv, err := httpserver.New(srvCfg, logger, httpserver.Opts{Handler: router, MetricsNamespace: "profserver"})
	if err != nil {
		return nil, err
	}
	return &ProfServer{HTTPServer: srv}, nil
}

// Stop stops profiling HTTP server (always in no gracefully way).
func (s *ProfServer) Stop(gracefully bool) error {
	return s.HTTPServer.Stop(false)
}
