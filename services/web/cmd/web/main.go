package main

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/containerlab/internal/platform/config"
	"github.com/example/containerlab/internal/platform/db"
	"github.com/example/containerlab/internal/platform/events"
	"github.com/example/containerlab/internal/platform/httpserver"
	"github.com/example/containerlab/internal/platform/logging"
	"github.com/example/containerlab/internal/platform/metrics"
	"github.com/example/containerlab/internal/platform/natsconn"
	"github.com/example/containerlab/internal/platform/run"
	"github.com/example/containerlab/services/web/internal/app"
	webcfg "github.com/example/containerlab/services/web/internal/config"
	"github.com/example/containerlab/services/web/internal/handlers"
	"github.com/example/containerlab/services/web/internal/schema"
	"github.com/example/containerlab/services/web/internal/store"
)

const schemaTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	base, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	log := logging.ForService(base, cfg.ServiceName, cfg.Build.Version)
	defer func() { _ = log.Sync() }()

	wc, err := webcfg.Load()
	if err == nil {
		err = wc.CheckEnvironment(cfg.IsProduction())
	}
	if err != nil {
		log.Error("config", zap.String("env", cfg.Env), zap.Error(err))
		run.Exit(1)
	}

	users, ready, closeStore := initUsers(log, wc)
	pub, closeEvents := initEvents(log, wc.NATSURL)

	r := app.NewRouter(app.Deps{
		Info: handlers.ServiceInfo{
			Service:     cfg.ServiceName,
			Version:     cfg.Build.Version,
			BuildDate:   cfg.Build.BuildDate,
			GitSHA:      cfg.Build.GitSHA,
			Environment: cfg.Env,
		},
		Logger:  log,
		Users:   users,
		Metrics: metrics.New(),
		Events:  pub,
		Ready:   ready,
	})
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: r})

	// Serve returns only after in-flight requests have drained, so the
	// publisher and the database are still open while they finish.
	code := run.New(log).ServeWithSignals(run.DefaultShutdownTimeout,
		func(context.Context) error { return srv.Start(log) },
		srv.Shutdown)

	// run.Exit skips deferred calls.
	if closeEvents != nil {
		closeEvents()
	}
	if closeStore != nil {
		closeStore()
	}
	log.Info("exit", zap.Int("code", code))
	_ = log.Sync()
	run.Exit(code)
}

// initUsers selects the UserStore backend. With postgres the base schema is
// ensured once; a failure is logged and the service starts not ready instead
// of exiting, so /readyz reports the outage.
func initUsers(log *zap.Logger, wc webcfg.Config) (store.UserStore, func(context.Context) error, func()) {
	if wc.StoreBackend == webcfg.BackendMemory {
		log.Warn("STORE_BACKEND=memory, using in-memory user store (development only)")
		return store.NewInMemoryUserStore(), nil, nil
	}

	provider, err := db.Open(wc.DB)
	if err != nil {
		log.Error("database config", zap.String("dsn", wc.DB.Redacted()), zap.Error(err))
		run.Exit(1)
	}
	log.Info("users store: postgres", zap.String("dsn", wc.DB.Redacted()))

	mgr, err := schema.NewManager(provider, log)
	if err != nil {
		log.Error("schema revisions", zap.Error(err))
		run.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := mgr.EnsureBaseSchema(ctx); err != nil {
		log.Warn("base schema not ensured, starting degraded", zap.Error(err))
	}

	closeFn := func() {
		if err := provider.Close(); err != nil {
			log.Warn("database close", zap.Error(err))
		}
	}
	return store.NewPostgresUserStore(provider), provider.Ping, closeFn
}

// initEvents connects to NATS when a URL is configured. Any failure leaves a
// no-op publisher; user creation never depends on the broker.
func initEvents(log *zap.Logger, url string) (*events.Publisher, func()) {
	if url == "" {
		log.Info("NATS_URL not set, user events disabled")
		return nil, nil
	}

	nc, err := natsconn.Connect(natsconn.Options{URL: url, Name: "containerlab-web", Logger: log})
	if err != nil {
		log.Warn("nats connect, user events disabled", zap.Error(err))
		return nil, nil
	}
	js, err := nc.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		log.Warn("jetstream, user events disabled", zap.Error(err))
		nc.Close()
		return nil, nil
	}
	if err := events.EnsureStream(js); err != nil {
		log.Warn("ensure stream", zap.String("stream", events.StreamName), zap.Error(err))
	}
	log.Info("user events enabled", zap.String("subject", events.SubjectUserCreated))

	return events.New(js, log), func() {
		select {
		case <-js.PublishAsyncComplete():
		case <-time.After(2 * time.Second):
			log.Warn("pending user events dropped on shutdown")
		}
		nc.Close()
	}
}
