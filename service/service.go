/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/acronis/go-rawhttp/log"
)

// Service starts a unit and keeps it running until a shutdown signal,
// context cancellation or a fatal error of the unit.
type Service struct {
	Unit            Unit
	Logger          log.FieldLogger
	Signals         chan os.Signal
	ShutdownSignals []os.Signal
}

// New creates a new Service that stops the unit gracefully on SIGINT or SIGTERM.
func New(logger log.FieldLogger, unit Unit) *Service {
	return &Service{
		Unit:            unit,
		Logger:          logger,
		Signals:         make(chan os.Signal, 1),
		ShutdownSignals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Start is StartContext with the background context.
func (s *Service) Start() error {
	return s.StartContext(context.Background())
}

// StartContext registers unit metrics, starts the unit in a separate goroutine and blocks until
// the service should be stopped.
func (s *Service) StartContext(ctx context.Context) error {
	if mr, ok := s.Unit.(MetricsRegisterer); ok {
		mr.MustRegisterMetrics()
		defer mr.UnregisterMetrics()
	}

	fatalErr := make(chan error, 1)
	go s.Unit.Start(fatalErr)

	signal.Notify(s.Signals, s.ShutdownSignals...)
	defer signal.Stop(s.Signals)

	select {
	case err := <-fatalErr:
		s.Logger.Error("service fatal error", log.Error(err))
		return fmt.Errorf("fatal error: %w", err)
	case sig := <-s.Signals:
		s.Logger.Info("service got signal, stopping", log.String("signal", sig.String()))
	case <-ctx.Done():
		s.Logger.Info("context is canceled, stopping")
	}

	if err := s.Unit.Stop(true); err != nil {
		return fmt.Errorf("stop service gracefully: %w", err)
	}
	s.Logger.Info("service stopped")
	return nil
}
