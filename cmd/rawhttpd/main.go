/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// rawhttpd is a connection-per-request HTTP/1.1 server with per-client rate limiting.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"

	"github.com/acronis/go-rawhttp/httpserver"
	"github.com/acronis/go-rawhttp/internal/libinfo"
	"github.com/acronis/go-rawhttp/internal/ratelimit"
	"github.com/acronis/go-rawhttp/log"
	"github.com/acronis/go-rawhttp/profserver"
	"github.com/acronis/go-rawhttp/service"
	"github.com/acronis/go-rawhttp/webapp"
)

const (
	appName          = "rawhttpd"
	metricsNamespace = "rawhttpd"
	defaultEnvPrefix = "RAWHTTP"

	sweeperStopTimeout = 5 * time.Second
)

// Version is set via ldflags. The module version from the build info is used otherwise.
var Version string

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	version := Version
	if version == "" {
		version = libinfo.GetVersion()
	}
	return &cli.App{
		Name:    appName,
		Usage:   "minimal concurrent HTTP/1.1 server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the configuration file (yaml or json)",
				EnvVars: []string{"RAWHTTP_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-prefix",
				Usage: "prefix of environment variables overriding configuration values (e.g. RAWHTTP_SERVER_WORKERS)",
				Value: defaultEnvPrefix,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadAppConfig(c.String("config"), c.String("env-prefix"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runApp(cfg)
		},
	}
}

func runApp(cfg *AppConfig) error {
	logger, loggerClose := log.NewLogger(cfg.Log)
	defer loggerClose()

	units, err := makeServiceUnits(cfg, logger)
	if err != nil {
		logger.Error("service initialization failed", log.Error(err))
		return err
	}
	return service.New(logger, service.NewCompositeUnit(units...)).Start()
}

func makeServiceUnits(cfg *AppConfig, logger log.FieldLogger) ([]service.Unit, error) {
	handler, err := webapp.NewHandler(cfg.WebApp, logger)
	if err != nil {
		return nil, fmt.Errorf("create web application handler: %w", err)
	}

	srv, err := httpserver.New(cfg.Server, logger, httpserver.Opts{
		Routes:            func(router chi.Router) { handler.Register(router) },
		MetricsNamespace:  metricsNamespace,
		SessionCookieName: cfg.WebApp.SessionCookie,
	})
	if err != nil {
		return nil, fmt.Errorf("create HTTP server: %w", err)
	}
	units := []service.Unit{srv}

	if sweeper := makeLimiterSweeper(srv.Limiter, time.Duration(cfg.Server.RateLimit.SweepInterval), logger); sweeper != nil {
		units = append(units, sweeper)
	}

	if cfg.ProfServer.Enabled {
		profSrv, profErr := profserver.New(cfg.ProfServer, logger)
		if profErr != nil {
			return nil, fmt.Errorf("create profiling server: %w", profErr)
		}
		units = append(units, profSrv)
	}
	return units, nil
}

// makeLimiterSweeper returns a unit that periodically forgets idle clients of the sliding log limiter.
// Nil is returned when sweeping is disabled or not supported by the limiter.
func makeLimiterSweeper(limiter ratelimit.Limiter, interval time.Duration, logger log.FieldLogger) service.Unit {
	slidingLog, ok := limiter.(*ratelimit.SlidingLogLimiter)
	if !ok || interval <= 0 {
		return nil
	}
	logger = logger.With(log.String("worker", "rate_limiter_sweeper"))
	sweep := service.WorkerFunc(func(ctx context.Context) error {
		if removed := slidingLog.Sweep(); removed > 0 {
			logger.Debug("idle clients removed from rate limiter", log.Int("removed", removed), log.Int("remaining", slidingLog.Len()))
		}
		return nil
	})
	return service.NewWorkerUnit(service.NewPeriodicWorker(sweep, interval, logger), sweeperStopTimeout)
}
