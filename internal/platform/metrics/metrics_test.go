package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newInstrumentedRouter(c *Collector) chi.Router {
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/users", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"count":0,"users":[]}`))
	})
	r.Get("/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/users", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return r
}

func serve(r http.Handler, method, path string) int {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr.Code
}

func TestObserve_CountsAndErrors(t *testing.T) {
	c := New()

	c.Observe(http.MethodGet, "/users", http.StatusOK, 5*time.Millisecond)
	c.Observe(http.MethodGet, "/users", http.StatusOK, 7*time.Millisecond)
	c.Observe(http.MethodPost, "/users", http.StatusConflict, time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "/users", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("POST", "/users", "409")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.errors.WithLabelValues("POST", "/users", "409")))
	require.Equal(t, 0.0, testutil.ToFloat64(c.errors.WithLabelValues("GET", "/users", "200")))
	require.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestMiddleware_ExactCountAfterNRequests(t *testing.T) {
	c := New()
	r := newInstrumentedRouter(c)

	const n = 25
	for i := 0; i < n; i++ {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users"))
	}

	require.Equal(t, float64(n), testutil.ToFloat64(c.requests.WithLabelValues("GET", "/users", "200")))
}

func TestMiddleware_ConcurrentRequestsNeverLoseIncrements(t *testing.T) {
	c := New()
	r := newInstrumentedRouter(c)

	const k = 200
	var wg sync.WaitGroup
	wg.Add(k)
	for i := 0; i < k; i++ {
		go func() {
			defer wg.Done()
			serve(r, http.MethodGet, "/users")
		}()
	}
	wg.Wait()

	require.Equal(t, float64(k), testutil.ToFloat64(c.requests.WithLabelValues("GET", "/users", "200")))
}

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	c := New()
	r := newInstrumentedRouter(c)

	serve(r, http.MethodGet, "/users/1")
	serve(r, http.MethodGet, "/users/2")

	require.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "/users/{id}", "404")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.errors.WithLabelValues("GET", "/users/{id}", "404")))
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	c := New()
	r := newInstrumentedRouter(c)

	require.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/nope/123"))
	require.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", UnmatchedRoute, "404")))
}

func TestMiddleware_ErrorStatusCounted(t *testing.T) {
	c := New()
	r := newInstrumentedRouter(c)

	serve(r, http.MethodPost, "/users")

	require.Equal(t, 1.0, testutil.ToFloat64(c.errors.WithLabelValues("POST", "/users", "503")))
}

func TestHandler_Snapshot(t *testing.T) {
	c := New()
	r := newInstrumentedRouter(c)
	serve(r, http.MethodGet, "/users")

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	text := string(body)
	require.True(t, strings.Contains(text, `http_requests_total{endpoint="/users",method="GET",status="200"} 1`), text)
	require.True(t, strings.Contains(text, "http_request_duration_seconds_bucket"), text)
}

func TestHandler_SafeDuringTraffic(t *testing.T) {
	c := New()
	r := newInstrumentedRouter(c)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			serve(r, http.MethodGet, "/users")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			rr := httptest.NewRecorder()
			c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		}
	}()
	wg.Wait()

	require.Equal(t, 100.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "/users", "200")))
}
