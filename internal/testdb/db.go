//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/evaluator/internal/platform/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

// URLEnvVar names an existing database to use instead of a container.
const URLEnvVar = "EVAL_TEST_DATABASE_URL"

var (
	setupOnce sync.Once
	sharedURL string
	setupErr  error
)

// GetTestDBWithT returns a migrated database connection that is closed when
// the test finishes.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	setupOnce.Do(func() {
		sharedURL, setupErr = databaseURL()
		if setupErr == nil {
			setupErr = migrate(sharedURL)
		}
	})
	if setupErr != nil {
		t.Skipf("test database unavailable: %v", setupErr)
	}

	db, err := sql.Open("pgx", sharedURL)
	require.NoError(t, err, "Failed to open database connection")
	db.SetMaxOpenConns(10)

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "Database ping failed")

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close database connection: %v", err)
		}
	})
	return db
}

// URL returns the shared database URL. GetTestDBWithT must have run first.
func URL() string {
	return sharedURL
}

// WithTx executes fn within a transaction that is always rolled back.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "Failed to begin transaction")

	defer func() {
		err := tx.Rollback()
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// ResetJobs deletes every job of queue so tests sharing the database start
// from an empty queue.
func ResetJobs(t *testing.T, db *sql.DB, queue string) {
	t.Helper()
	_, err := db.Exec(`DELETE FROM jobs WHERE queue = $1`, queue)
	require.NoError(t, err, "Failed to reset jobs")
}

func databaseURL() (string, error) {
	if url := os.Getenv(URLEnvVar); url != "" {
		return url, nil
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "evaluator",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgres://test:test@%s:%s/evaluator?sslmode=disable", host, port.Port())
		}).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}

	// The container is reaped by testcontainers when the test binary exits.
	return fmt.Sprintf("postgres://test:test@%s:%s/evaluator?sslmode=disable", host, port.Port()), nil
}

func migrate(url string) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, set := range []postgres.MigrationSet{postgres.RecordMigrations, postgres.QueueMigrations} {
		if err := postgres.Migrate(context.Background(), db, set, "up", quiet); err != nil {
			return err
		}
	}
	return nil
}
