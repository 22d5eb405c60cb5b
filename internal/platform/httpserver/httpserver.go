package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Server struct {
	HTTP *http.Server
}

// Options configures the listener. Zero timeouts take the defaults below.
type Options struct {
	Addr              string
	Router            chi.Router
	ReadHeaderTimeout time.Duration // default 5s
	IdleTimeout       time.Duration // default 60s
}

func New(opts Options) *Server {
	if opts.Router == nil {
		opts.Router = chi.NewRouter()
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 5 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 60 * time.Second
	}

	return &Server{HTTP: &http.Server{
		Addr:              opts.Addr,
		Handler:           opts.Router,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}}
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start(log *zap.Logger) error {
	ln, err := net.Listen("tcp", s.HTTP.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln, log)
}

// Serve blocks on an existing listener; it returns http.ErrServerClosed after Shutdown.
func (s *Server) Serve(ln net.Listener, log *zap.Logger) error {
	log.Info("http server starting", zap.String("addr", ln.Addr().String()))
	return s.HTTP.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.HTTP.Shutdown(ctx)
}
