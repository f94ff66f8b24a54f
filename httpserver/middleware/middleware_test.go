/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-rawhttp/log"
	"github.com/acronis/go-rawhttp/log/logtest"
	"github.com/acronis/go-rawhttp/testutil"
)

func TestRequestID(t *testing.T) {
	var gotID string
	handler := RequestIDWithGenerator(func() string { return "generated" })(
		http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			gotID = GetRequestIDFromContext(r.Context())
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "generated", gotID)
	require.Equal(t, "generated", rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "from-client")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "from-client", gotID)

	rec = httptest.NewRecorder()
	RequestID()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, rec.Header().Get("X-Request-ID"), 20)
}

func TestLogging(t *testing.T) {
	logger := logtest.NewRecorder()
	var ctxLogger log.FieldLogger
	handler := RequestIDWithGenerator(func() string { return "req-1" })(LoggingWithOpts(logger, LoggingOpts{
		ExcludedEndpoints: []string{"/metrics"},
	})(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ctxLogger = GetLoggerFromContext(r.Context())
		if r.URL.Path == "/metrics" {
			return
		}
		rw.WriteHeader(http.StatusTeapot)
		_, _ = rw.Write([]byte("short and stout"))
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/kettle", nil))
	require.NotNil(t, ctxLogger)
	entries := logger.Entries()
	require.Len(t, entries, 1)
	entry := entries[0]
	require.Equal(t, log.LevelInfo, entry.Level)
	for key, want := range map[string]string{"request_id": "req-1", "method": "POST", "uri": "/kettle"} {
		field, found := entry.FindField(key)
		require.True(t, found, key)
		require.Equal(t, want, string(field.Bytes), key)
	}
	status, found := entry.FindField("status")
	require.True(t, found)
	require.EqualValues(t, http.StatusTeapot, status.Int)
	bytesSent, found := entry.FindField("bytes_sent")
	require.True(t, found)
	require.EqualValues(t, 15, bytesSent.Int)

	logger.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Empty(t, logger.Entries())
}

func TestRecovery(t *testing.T) {
	logger := logtest.NewRecorder()
	handler := Recovery()(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(NewContextWithLogger(req.Context(), logger))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "<h1>Internal Server Error</h1>")
	entry, found := logger.FindEntry("Panic: handler bug")
	require.True(t, found)
	_, found = entry.FindField("stack")
	require.True(t, found)

	require.Panics(t, func() {
		Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestHTTPRequestMetrics(t *testing.T) {
	collector := NewHTTPRequestMetricsCollector("test")
	handler := HTTPRequestMetrics(collector, func(r *http.Request) string { return "/api/*" }, "/metrics")(
		http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(http.StatusAccepted)
		}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/x", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/y", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	hist := collector.Durations.With(prometheus.Labels{
		metricsLabelMethod: http.MethodPut, metricsLabelRoutePattern: "/api/*", metricsLabelStatusCode: "202",
	}).(prometheus.Histogram)
	testutil.RequireSamplesCountInHistogram(t, hist, 2)
	testutil.RequireGaugeValue(t, collector.InFlight, 0)

	require.Panics(t, func() { HTTPRequestMetrics(collector, nil) })
}
