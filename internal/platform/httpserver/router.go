package httpserver

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/example/containerlab/internal/platform/api"
	"github.com/example/containerlab/internal/platform/db"
	"github.com/example/containerlab/internal/platform/metrics"
)

// RouterConfig wires the optional collaborators of the base router.
type RouterConfig struct {
	ServiceName string
	Version     string
	Logger      *zap.Logger
	Metrics     *metrics.Collector
	// ReadyFunc is probed live on every /readyz call. Nil means always ready.
	ReadyFunc    func(ctx context.Context) error
	ReadyTimeout time.Duration
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service,omitempty"`
	Version   string `json:"version,omitempty"`
	Timestamp string `json:"timestamp"`
}

type readyResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service,omitempty"`
	Database  string `json:"database"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// SetupRouter attaches base middlewares and common endpoints.
// IMPORTANT: must be called before registering any routes.
func SetupRouter(r chi.Router, cfgs ...RouterConfig) {
	var cfg RouterConfig
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}

	// Correlation / request id
	r.Use(RequestIDMiddleware(requestIDHeader))

	if cfg.Logger != nil {
		r.Use(AccessLog(cfg.Logger))
	}
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	// Inside logging and metrics so a recovered panic is recorded as a 500.
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   parseCORSOrigins(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.NotFound(w, "NOT_FOUND", "route not found", RequestIDFromContext(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.MethodNotAllowed(w, RequestIDFromContext(r.Context()))
	})

	// Liveness never touches dependencies.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, healthResponse{
			Status:    "healthy",
			Service:   cfg.ServiceName,
			Version:   cfg.Version,
			Timestamp: now(),
		})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadyFunc != nil {
			ctx, cancel := context.WithTimeout(r.Context(), cfg.ReadyTimeout)
			err := cfg.ReadyFunc(ctx)
			cancel()
			if err != nil {
				if cfg.Logger != nil {
					LoggerFrom(r.Context(), cfg.Logger).Error("readiness check failed", zap.Error(err))
				}
				api.WriteJSON(w, http.StatusServiceUnavailable, readyResponse{
					Status:    "not ready",
					Service:   cfg.ServiceName,
					Database:  "disconnected",
					Error:     readinessReason(err),
					Timestamp: now(),
				})
				return
			}
		}
		api.WriteJSON(w, http.StatusOK, readyResponse{
			Status:    "ready",
			Service:   cfg.ServiceName,
			Database:  "connected",
			Timestamp: now(),
		})
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
}

func parseCORSOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// readinessReason keeps driver detail (hosts, credentials) out of the probe body.
func readinessReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "readiness probe timed out"
	case errors.Is(err, db.ErrUnavailable):
		return "database unreachable"
	case errors.Is(err, db.ErrQueryFailed):
		return "database query failed"
	default:
		return err.Error()
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
