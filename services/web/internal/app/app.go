// Package app assembles the web service router from its collaborators.
package app

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/containerlab/internal/platform/events"
	"github.com/example/containerlab/internal/platform/httpserver"
	"github.com/example/containerlab/internal/platform/metrics"
	"github.com/example/containerlab/services/web/internal/handlers"
	"github.com/example/containerlab/services/web/internal/store"
)

type Deps struct {
	Info    handlers.ServiceInfo
	Logger  *zap.Logger
	Users   store.UserStore
	Metrics *metrics.Collector
	// Events may be nil; publishing is then skipped.
	Events *events.Publisher
	// Ready is probed on every /readyz request.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) chi.Router {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ServiceName: d.Info.Service,
		Version:     d.Info.Version,
		Logger:      log,
		Metrics:     d.Metrics,
		ReadyFunc:   d.Ready,
	})

	r.Get("/", handlers.Index(d.Info))
	r.Get("/version", handlers.Version(d.Info))
	r.Get("/users", handlers.ListUsers(d.Users, log))
	r.Post("/users", handlers.CreateUser(d.Users, d.Events, log))
	return r
}
