/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-rawhttp/httpserver/middleware"
	"github.com/acronis/go-rawhttp/log"
	"github.com/acronis/go-rawhttp/restapi"
)

// systemEndpoints is a list of endpoints which are not involved in metrics collecting and logging.
var systemEndpoints = []string{"/metrics"}

// RouterOpts represents options for creating chi.Router.
type RouterOpts struct {
	// RootMiddlewares is a list of middlewares to be applied after the default ones.
	RootMiddlewares []func(http.Handler) http.Handler
	// MetricsHandler is a custom handler for the /metrics endpoint (promhttp.Handler() is used by default).
	MetricsHandler http.Handler
	// MetricsCollector enables the middleware collecting HTTP request metrics.
	MetricsCollector *middleware.HTTPRequestMetricsCollector
	// GetRoutePattern is used for labeling request metrics (GetChiRoutePattern by default).
	GetRoutePattern middleware.RoutePatternGetterFunc
	// Routes registers the application routes.
	Routes func(router chi.Router)
}

// NewRouter creates a new chi.Router with request id, logging, recovery and metrics middlewares,
// and the /metrics endpoint.
func NewRouter(logger log.FieldLogger, opts RouterOpts) chi.Router {
	router := chi.NewRouter()

	router.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			handler.ServeHTTP(rw, r.WithContext(middleware.NewContextWithRequestStartTime(r.Context(), time.Now())))
		})
	})
	router.Use(middleware.RequestID())
	router.Use(middleware.LoggingWithOpts(logger, middleware.LoggingOpts{ExcludedEndpoints: systemEndpoints}))
	router.Use(middleware.Recovery())
	if opts.MetricsCollector != nil {
		getRoutePattern := opts.GetRoutePattern
		if getRoutePattern == nil {
			getRoutePattern = GetChiRoutePattern
		}
		router.Use(middleware.HTTPRequestMetrics(opts.MetricsCollector, getRoutePattern, systemEndpoints...))
	}
	router.Use(opts.RootMiddlewares...)

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.Method(http.MethodGet, "/metrics", metricsHandler)

	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		restapi.RespondHTMLError(rw, http.StatusNotFound,
			"Not Found", "The requested resource was not found.", middleware.GetLoggerFromContext(r.Context()))
	})

	if opts.Routes != nil {
		opts.Routes(router)
	}
	return router
}

// GetChiRoutePattern extracts chi route pattern from request.
func GetChiRoutePattern(r *http.Request) string {
	// modified code from https://github.com/go-chi/chi/issues/270#issuecomment-479184559
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}

	routePath := r.URL.RawPath
	if routePath == "" {
		routePath = r.URL.Path
	}

	tctx := chi.NewRouteContext()
	if !rctx.Routes.Match(tctx, r.Method, routePath) {
		return ""
	}
	return tctx.RoutePattern()
}
