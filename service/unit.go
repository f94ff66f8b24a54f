/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package service ties the long-living parts of the server (listener, pprof endpoint, background sweeps)
// into a single process lifecycle driven by OS signals.
package service

// Unit is a component of the service with its own lifecycle.
type Unit interface {
	// Start runs the unit. It may block for the unit's whole lifetime or return right after initialization.
	// A fatal error is reported by writing it into the channel before returning. Nothing may be written
	// to the channel after Start has returned.
	Start(fatalErr chan<- error)

	// Stop halts the unit. It may be called even if Start failed or was never called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is implemented by units that own Prometheus collectors.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
