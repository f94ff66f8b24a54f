/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-rawhttp/internal/libinfo"
)

// Outcomes of a served connection.
const (
	OutcomeServed         = "served"
	OutcomeRateLimited    = "rate_limited"
	OutcomeMalformed      = "malformed"
	OutcomeTooLarge       = "too_large"
	OutcomeIncompleteBody = "incomplete_body"
	OutcomeClosed         = "closed"
	OutcomeAborted        = "aborted"
)

const metricsLabelOutcome = "outcome"

// ConnectionMetrics represents collector of metrics for connections handled by the Dispatcher.
type ConnectionMetrics struct {
	Connections *prometheus.CounterVec
}

// NewConnectionMetrics creates a new instance of ConnectionMetrics.
func NewConnectionMetrics(namespace string) *ConnectionMetrics {
	return &ConnectionMetrics{
		Connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "connections_total",
			Help:        "Number of accepted connections by the outcome of their handling.",
			ConstLabels: libinfo.AddPrometheusVersionLabel(nil),
		}, []string{metricsLabelOutcome}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (cm *ConnectionMetrics) MustRegister() {
	prometheus.MustRegister(cm.Connections)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (cm *ConnectionMetrics) Unregister() {
	prometheus.Unregister(cm.Connections)
}

func (cm *ConnectionMetrics) observe(outcome string) {
	if cm == nil {
		return
	}
	cm.Connections.WithLabelValues(outcome).Inc()
}
