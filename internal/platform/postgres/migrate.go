package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/records/*.sql migrations/queue/*.sql
var migrationsFS embed.FS

// MigrationSet is a group of migrations versioned in its own goose table.
// The record store and the broker may live in different databases, so each
// owns a set.
type MigrationSet struct {
	Name  string
	Dir   string
	Table string
}

var (
	// RecordMigrations creates the evaluations table.
	RecordMigrations = MigrationSet{Name: "records", Dir: "migrations/records", Table: "schema_migrations"}

	// QueueMigrations creates the jobs table used by the broker.
	QueueMigrations = MigrationSet{Name: "queue", Dir: "migrations/queue", Table: "queue_schema_migrations"}
)

// slogGooseLogger adapts goose logging to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf implements goose.Logger.
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf implements goose.Logger. It logs at error level and leaves exit
// handling to the caller.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// Migrate runs a goose command for set against db. Supported commands are
// up, down, status and version. goose keeps its settings in package state,
// so calls must not run concurrently.
func Migrate(ctx context.Context, db *sql.DB, set MigrationSet, command string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "migrations", "set", set.Name, "command", command)

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&slogGooseLogger{logger: log})
	goose.SetTableName(set.Table)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, set.Dir)
	case "down":
		err = goose.DownContext(ctx, db, set.Dir)
	case "status":
		err = goose.StatusContext(ctx, db, set.Dir)
	case "version":
		var version int64
		version, err = goose.GetDBVersionContext(ctx, db)
		if err == nil {
			log.Info("current migration version", "version", version)
		}
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	log.Info("migration command completed")
	return nil
}
