package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const DefaultShutdownTimeout = 10 * time.Second

type Runner struct {
	Logger *zap.Logger
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log}
}

// ServeWithSignals is Serve bound to SIGINT and SIGTERM.
func (r *Runner) ServeWithSignals(timeout time.Duration, start, shutdown func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return r.Serve(ctx, timeout, start, shutdown)
}

// Serve runs start until ctx is cancelled, then calls shutdown with a context
// bounded by timeout and waits for start to return. When Serve returns, the
// server has stopped and in-flight requests have finished or hit the bound.
func (r *Runner) Serve(ctx context.Context, timeout time.Duration, start, shutdown func(ctx context.Context) error) int {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case err := <-errCh:
		return r.exitCode(err)
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received", zap.Duration("timeout", timeout))
	}

	r.Graceful(timeout, shutdown)

	select {
	case err := <-errCh:
		return r.exitCode(err)
	case <-time.After(timeout):
		r.Logger.Error("server did not stop within shutdown timeout")
		return 1
	}
}

func (r *Runner) exitCode(err error) int {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return 0
	}
	r.Logger.Error("service exited with error", zap.Error(err))
	return 1
}

// Graceful runs shutdown with its own bounded context, detached from the cancelled parent.
func (r *Runner) Graceful(timeout time.Duration, shutdown func(context.Context) error) {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	c, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(c); err != nil {
		r.Logger.Warn("graceful shutdown incomplete", zap.Error(err))
	}
}

func Exit(code int) {
	os.Exit(code)
}
