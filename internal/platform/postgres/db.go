package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/phrazzld/evaluator/internal/redact"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// PoolOptions configures the connection pool opened by Open.
type PoolOptions struct {
	MaxOpenConns   int
	ConnectTimeout time.Duration
}

// Open opens a pool for url and waits for the server with exponential
// backoff until opts.ConnectTimeout elapses. Services start alongside their
// database in most deployments, so a refused first ping is expected.
func Open(ctx context.Context, url string, opts PoolOptions, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(DriverName, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %s", redact.Error(err))
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(max(1, opts.MaxOpenConns/2))
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxInterval = 5 * time.Second
	expBackoff.MaxElapsedTime = opts.ConnectTimeout

	attempt := 0
	operation := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			logger.Warn("database not ready, retrying",
				"attempt", attempt,
				"error", redact.Error(err))
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %s", attempt, redact.Error(err))
	}

	logger.Info("database connection established", "attempts", attempt)
	return db, nil
}
