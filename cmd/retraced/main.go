// Command retraced runs the retrace audit-trail server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/retracehq/retrace/internal/api"
	"github.com/retracehq/retrace/internal/config"
	"github.com/retracehq/retrace/internal/db"
	"github.com/retracehq/retrace/internal/db/migrations"
	"github.com/retracehq/retrace/internal/dbpool"
	"github.com/retracehq/retrace/internal/models"
	"github.com/retracehq/retrace/internal/registry"
	"github.com/retracehq/retrace/internal/service"
	"github.com/retracehq/retrace/internal/store"
	"github.com/retracehq/retrace/internal/ws"
)

// version is set at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := run(log); err != nil {
		log.WithError(err).Fatal("retraced exited with error")
	}
}

func run(log *logrus.Logger) error {
	// Best-effort .env loading for local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		return err
	}

	// Stores.
	base := store.Base{Pool: pool, Log: log}
	auditStore := store.NewAuditStore(base)
	entityStore := store.NewEntityStore(base)

	// Audited type registry: every configured type is served by the generic
	// map-backed entity. Embedding applications register richer types here.
	reg := registry.New()
	for _, name := range cfg.AuditedTypes {
		typeName := name
		err := reg.Register(typeName, registry.Config{
			New: func() registry.Auditable { return models.NewEntity(typeName) },
			Find: func(ctx context.Context, id string) (registry.Auditable, error) {
				return entityStore.Get(ctx, typeName, id)
			},
		})
		if err != nil {
			return err
		}
	}

	// Event fan-out.
	hub := ws.NewHub(log)
	publisher := service.NewEventPublisher(hub, log, cfg.PublisherQueueSize)

	// Services.
	auditSvc := service.NewAuditService(auditStore, publisher, log)
	entitySvc := service.NewEntityService(entityStore, publisher, log)
	revisionSvc := service.NewRevisionService(auditStore, reg, log)

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:         log,
		Pool:        pool,
		Hub:         hub,
		Audits:      auditSvc,
		Entities:    entitySvc,
		Revisions:   revisionSvc,
		Registry:    reg,
		APIKey:      cfg.APIKey.Value(),
		CORSOrigins: cfg.CORSOrigins,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)

		return nil
	})

	g.Go(func() error {
		publisher.Run(gctx)

		return nil
	})

	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":    srv.Addr,
			"version": version,
			"types":   cfg.AuditedTypes,
		}).Info("retraced listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("retraced stopped")

	return nil
}
