package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/example/containerlab/internal/platform/metrics"
)

type ctxKeyLogger struct{}

// LoggerFrom returns the request-scoped logger installed by AccessLog, which
// already carries method, path and request_id. Without one, fallback is
// returned with whatever request id the context holds.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKeyLogger{}).(*zap.Logger); ok {
		return l
	}
	if fallback == nil {
		fallback = zap.NewNop()
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		return fallback.With(zap.String("request_id", rid))
	}
	return fallback
}

// AccessLog emits one structured line per request once the response is ready
// and hands handlers a logger bound to the request.
func AccessLog(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", RequestIDFromContext(r.Context())),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				status := metrics.StatusOf(ww)
				fields := []zap.Field{
					zap.String("route", metrics.RouteTemplate(r)),
					zap.Int("status", status),
					zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
				}
				if status >= http.StatusInternalServerError {
					reqLog.Warn("request processed", fields...)
					return
				}
				reqLog.Info("request processed", fields...)
			}()
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), ctxKeyLogger{}, reqLog)))
		})
	}
}
