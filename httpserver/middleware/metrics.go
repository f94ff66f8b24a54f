/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsLabelMethod       = "method"
	metricsLabelRoutePattern = "route_pattern"
	metricsLabelStatusCode   = "status_code"
)

// DefaultHTTPRequestDurationBuckets is default buckets into which observations of serving HTTP requests are counted.
var DefaultHTTPRequestDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// RoutePatternGetterFunc returns the route pattern that matched the request.
// The set of returned values must be finite.
type RoutePatternGetterFunc func(r *http.Request) string

// HTTPRequestMetricsCollector represents collector of metrics for served HTTP requests.
type HTTPRequestMetricsCollector struct {
	Durations *prometheus.HistogramVec
	InFlight  prometheus.Gauge
}

// NewHTTPRequestMetricsCollector creates a new metrics collector.
func NewHTTPRequestMetricsCollector(namespace string) *HTTPRequestMetricsCollector {
	return &HTTPRequestMetricsCollector{
		Durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "A histogram of the HTTP request durations.",
			Buckets:   DefaultHTTPRequestDurationBuckets,
		}, []string{metricsLabelMethod, metricsLabelRoutePattern, metricsLabelStatusCode}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served.",
		}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (c *HTTPRequestMetricsCollector) MustRegister() {
	prometheus.MustRegister(c.Durations, c.InFlight)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (c *HTTPRequestMetricsCollector) Unregister() {
	prometheus.Unregister(c.Durations)
	prometheus.Unregister(c.InFlight)
}

// HTTPRequestMetrics is a middleware that collects metrics for served HTTP requests.
// Requests to excludedEndpoints are not measured.
func HTTPRequestMetrics(
	collector *HTTPRequestMetricsCollector, getRoutePattern RoutePatternGetterFunc, excludedEndpoints ...string,
) func(next http.Handler) http.Handler {
	if getRoutePattern == nil {
		panic("function for getting route pattern cannot be nil")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if isExcluded(r.URL.Path, excludedEndpoints) {
				next.ServeHTTP(rw, r)
				return
			}

			startTime := GetRequestStartTimeFromContext(r.Context())
			if startTime.IsZero() {
				startTime = time.Now()
			}
			collector.InFlight.Inc()
			defer collector.InFlight.Dec()

			wrw := chimw.NewWrapResponseWriter(rw, r.ProtoMajor)
			next.ServeHTTP(wrw, r)

			status := wrw.Status()
			if status == 0 {
				status = http.StatusOK
			}
			routePattern := getRoutePattern(r)
			if routePattern == "" {
				routePattern = "_unmatched"
			}
			collector.Durations.With(prometheus.Labels{
				metricsLabelMethod:       r.Method,
				metricsLabelRoutePattern: routePattern,
				metricsLabelStatusCode:   strconv.Itoa(status),
			}).Observe(time.Since(startTime).Seconds())
		})
	}
}
