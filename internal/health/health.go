// Package health reports the reachability of the evaluation record database
// and the job broker.
package health

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Overall statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// Component statuses.
const (
	Up   = "up"
	Down = "down"
)

const defaultTimeout = 3 * time.Second

// DatabasePinger is satisfied by store.EvaluationStore.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// QueuePinger is satisfied by queue.Queue.
type QueuePinger interface {
	Ping(ctx context.Context) bool
}

// Report is the health of the service at one point in time.
type Report struct {
	Status   string    `json:"status"`
	Database string    `json:"database"`
	Queue    string    `json:"queue"`
	Time     time.Time `json:"time"`
}

// Checker probes the database and the broker concurrently.
type Checker struct {
	db      DatabasePinger
	queue   QueuePinger
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewChecker creates a Checker. A timeout of zero uses three seconds.
func NewChecker(db DatabasePinger, queue QueuePinger, timeout time.Duration, logger *slog.Logger) *Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		db:      db,
		queue:   queue,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "health")),
	}
}

// Check returns ok when both dependencies are up, degraded when one is, and
// down when neither is.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var dbUp, queueUp bool
	var g errgroup.Group
	g.Go(func() error {
		if err := c.db.Ping(ctx); err != nil {
			c.logger.Warn("database health check failed", slog.String("error", err.Error()))
			return nil
		}
		dbUp = true
		return nil
	})
	g.Go(func() error {
		queueUp = c.queue.Ping(ctx)
		return nil
	})
	_ = g.Wait()

	report := Report{
		Database: componentStatus(dbUp),
		Queue:    componentStatus(queueUp),
		Time:     c.now().UTC(),
	}
	switch {
	case dbUp && queueUp:
		report.Status = StatusOK
	case dbUp || queueUp:
		report.Status = StatusDegraded
	default:
		report.Status = StatusDown
	}
	return report
}

func componentStatus(up bool) string {
	if up {
		return Up
	}
	return Down
}
