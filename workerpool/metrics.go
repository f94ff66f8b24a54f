/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package workerpool

import "github.com/prometheus/client_golang/prometheus"

// PrometheusMetrics is a set of Prometheus collectors describing the pool's load.
type PrometheusMetrics struct {
	QueuedJobs    prometheus.Gauge
	BusyWorkers   prometheus.Gauge
	ExecutedTotal prometheus.Counter
	PanicsTotal   prometheus.Counter
}

// NewPrometheusMetrics creates pool metrics with the given namespace.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		QueuedJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workerpool_queued_jobs",
			Help:      "Number of jobs waiting for a free worker.",
		}),
		BusyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workerpool_busy_workers",
			Help:      "Number of workers executing a job.",
		}),
		ExecutedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workerpool_executed_jobs_total",
			Help:      "Number of executed jobs (including panicked ones).",
		}),
		PanicsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workerpool_job_panics_total",
			Help:      "Number of jobs that panicked.",
		}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.QueuedJobs, pm.BusyWorkers, pm.ExecutedTotal, pm.PanicsTotal)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.QueuedJobs)
	prometheus.Unregister(pm.BusyWorkers)
	prometheus.Unregister(pm.ExecutedTotal)
	prometheus.Unregister(pm.PanicsTotal)
}
