// Package metrics records per-route request counts, error counts and latency
// and exposes them in the Prometheus text format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnmatchedRoute labels requests that did not match any registered route.
const UnmatchedRoute = "unmatched"

// Collector owns its registry so tests and multiple routers never collide on
// the process-wide default one. All vectors are safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors",
		}, []string{"method", "endpoint", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
	reg.MustRegister(
		c.requests,
		c.errors,
		c.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Observe records one finished request.
func (c *Collector) Observe(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	c.requests.WithLabelValues(method, route, code).Inc()
	c.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	if status >= http.StatusBadRequest {
		c.errors.WithLabelValues(method, route, code).Inc()
	}
}

// Middleware times every request and records it under its chi route template.
// It must be mounted on the chi router itself so the template is resolved.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			c.Observe(r.Method, RouteTemplate(r), StatusOf(ww), time.Since(start))
		}()
		next.ServeHTTP(ww, r)
	})
}

// Handler serves a snapshot of every registered metric.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Gatherer gives read access to the registry.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// RouteTemplate returns the matched chi pattern, e.g. /users, never the raw path.
func RouteTemplate(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return UnmatchedRoute
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return UnmatchedRoute
}

// StatusOf reports the status a wrapped writer sent; handlers that never call
// WriteHeader implicitly answered 200.
func StatusOf(ww middleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
