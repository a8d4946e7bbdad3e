package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/evaluator/internal/config"
	"github.com/phrazzld/evaluator/internal/platform/objectstore"
	"github.com/phrazzld/evaluator/internal/platform/postgres"
	"github.com/phrazzld/evaluator/internal/queue"
	"github.com/phrazzld/evaluator/internal/redact"
	"github.com/phrazzld/evaluator/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// application holds the connections and stores shared by the api and
// worker commands.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	db      *sql.DB
	queueDB *sql.DB

	records  store.EvaluationStore
	queue    *queue.PostgresQueue
	registry *prometheus.Registry
}

// newApplication connects to the record database and the broker. The
// broker reuses the record pool when both URLs are the same.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	pool := postgres.PoolOptions{
		MaxOpenConns:   cfg.Database.MaxOpenConns,
		ConnectTimeout: time.Duration(cfg.Database.ConnectTimeoutSeconds) * time.Second,
	}

	db, err := postgres.Open(ctx, cfg.Database.URL, pool, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to record database: %w", err)
	}

	queueDB := db
	if cfg.Queue.URL != cfg.Database.URL {
		queueDB, err = postgres.Open(ctx, cfg.Queue.URL, pool, logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to queue database: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "records"),
	)

	return &application{
		config:  cfg,
		logger:  logger,
		db:      db,
		queueDB: queueDB,
		records: postgres.NewPostgresEvaluationStore(db, logger),
		queue: queue.NewPostgresQueue(queueDB, queue.PostgresOptions{
			RetainCompleted: cfg.Queue.RetainCompleted,
			RetainFailed:    cfg.Queue.RetainFailed,
		}, logger),
		registry: registry,
	}, nil
}

// sourceChecker builds the audio source checker. The S3 client is only
// created when probing is enabled.
func (app *application) sourceChecker() (*objectstore.SourceChecker, error) {
	var prober objectstore.Prober
	if app.config.Storage.ProbeEnabled {
		client, err := objectstore.NewS3Client(app.config.Storage.Region)
		if err != nil {
			return nil, err
		}
		prober = objectstore.NewS3Prober(client, app.logger)
	}
	return objectstore.NewSourceChecker(app.config.Storage, prober, app.logger), nil
}

func (app *application) metricsHandler() http.Handler {
	return promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry})
}

// close releases both pools.
func (app *application) close() {
	if app.queueDB != app.db {
		if err := app.queueDB.Close(); err != nil {
			app.logger.Error("failed to close queue database", "error", redact.Error(err))
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close record database", "error", redact.Error(err))
	}
}

// serveHTTP runs srv until ctx is done, then shuts it down within timeout.
func serveHTTP(ctx context.Context, srv *http.Server, timeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server", "addr", srv.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}
