package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/evaluator/internal/platform/logger"
	"github.com/phrazzld/evaluator/internal/redact"
	"golang.org/x/sync/errgroup"
)

// Handler processes a claimed job. The returned value becomes the job's
// return value on success. Returning ErrSkip releases the job untouched;
// errors wrapped with Unrecoverable fail it without further attempts.
type Handler interface {
	Handle(ctx context.Context, job *Job) (any, error)
}

// StalledHandler is implemented by handlers that keep state outside the
// queue. The consumer calls HandleStalled for each job the stalled sweep
// failed, since no handler attempt saw that failure.
type StalledHandler interface {
	HandleStalled(ctx context.Context, job *Job)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job *Job) (any, error)

// Handle calls f(ctx, job).
func (f HandlerFunc) Handle(ctx context.Context, job *Job) (any, error) {
	return f(ctx, job)
}

// Outcome is what a consumer did with a job after its handler returned.
type Outcome string

// Job outcomes.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRetried   Outcome = "retried"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Observer is notified after every handled job.
type Observer interface {
	ObserveJob(job *Job, outcome Outcome, elapsed time.Duration)
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	// Queue is the queue to consume from.
	Queue string
	// Names are the job names this consumer claims.
	Names []string
	// Concurrency is the number of jobs processed at once. Defaults to 1.
	Concurrency int
	// PollInterval is the wait after an empty claim. Defaults to one second.
	PollInterval time.Duration
	// Lease is how long a claimed job stays exclusive. Defaults to five minutes.
	Lease time.Duration
	// HeartbeatInterval is how often the lease of a running job is extended.
	// Defaults to a third of Lease.
	HeartbeatInterval time.Duration
	// StalledCheckInterval is how often expired leases are swept. Zero
	// disables the sweep.
	StalledCheckInterval time.Duration
	// ID identifies the consumer in job locks. Generated when empty.
	ID string
}

// Consumer claims jobs from a Broker and runs them through a Handler until
// its context is cancelled.
type Consumer struct {
	broker   Broker
	handler  Handler
	config   ConsumerConfig
	observer Observer
	logger   *slog.Logger
}

// NewConsumer creates a Consumer. observer may be nil.
func NewConsumer(
	broker Broker,
	handler Handler,
	config ConsumerConfig,
	observer Observer,
	logger *slog.Logger,
) (*Consumer, error) {
	if broker == nil {
		return nil, errors.New("broker cannot be nil")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if config.Queue == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if len(config.Names) == 0 {
		return nil, errors.New("consumer needs at least one job name")
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.Lease <= 0 {
		config.Lease = 5 * time.Minute
	}
	if config.HeartbeatInterval <= 0 || config.HeartbeatInterval >= config.Lease {
		config.HeartbeatInterval = config.Lease / 3
	}
	if config.ID == "" {
		config.ID = defaultConsumerID()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		broker:   broker,
		handler:  handler,
		config:   config,
		observer: observer,
		logger: logger.With(
			slog.String("component", "consumer"),
			slog.String("queue", config.Queue),
			slog.String("consumer_id", config.ID),
		),
	}, nil
}

// ID returns the identifier the consumer locks jobs with.
func (c *Consumer) ID() string {
	return c.config.ID
}

// Run consumes jobs until ctx is cancelled. A job already being handled when
// ctx is cancelled runs to completion before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.Any("job_names", c.config.Names),
		slog.Int("concurrency", c.config.Concurrency))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.config.Concurrency; i++ {
		slot := i
		g.Go(func() error {
			c.poll(ctx, slot)
			return nil
		})
	}
	if c.config.StalledCheckInterval > 0 {
		g.Go(func() error {
			c.sweepStalled(ctx)
			return nil
		})
	}

	err := g.Wait()
	c.logger.Info("consumer stopped")
	return err
}

// poll claims and processes jobs one at a time until ctx is done.
func (c *Consumer) poll(ctx context.Context, slot int) {
	log := c.logger.With(slog.Int("slot", slot))

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := c.broker.Claim(ctx, c.config.Queue, c.config.Names, c.config.ID, c.config.Lease)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("failed to claim job", slog.String("error", err.Error()))
			c.wait(ctx)
			continue
		}
		if job == nil {
			c.wait(ctx)
			continue
		}

		// In-flight jobs are not cancelled on shutdown.
		c.Process(context.WithoutCancel(ctx), job)
	}
}

// Process runs a claimed job through the handler and settles it with the
// broker. It returns what was done with the job.
func (c *Consumer) Process(ctx context.Context, job *Job) Outcome {
	start := time.Now()
	log := c.logger.With(
		slog.String("job_id", job.ID),
		slog.String("job_name", job.Name),
		slog.Int("attempt", job.Attempt()),
		slog.Int("max_attempts", job.MaxAttempts),
	)
	ctx = logger.WithLogger(ctx, log)

	log.Info("processing job")
	handlerCtx, stop := context.WithCancel(ctx)
	beating := c.heartbeat(handlerCtx, stop, job)
	result, err := c.handle(handlerCtx, job)
	stop()
	<-beating

	var outcome Outcome
	switch {
	case err == nil:
		outcome = OutcomeCompleted
		if cerr := c.broker.Complete(ctx, job, result); cerr != nil {
			log.Error("failed to complete job", slog.String("error", cerr.Error()))
		} else {
			log.Info("job completed", slog.Duration("elapsed", time.Since(start)))
		}

	case errors.Is(err, ErrSkip):
		outcome = OutcomeSkipped
		if rerr := c.broker.Release(ctx, job); rerr != nil {
			log.Error("failed to release job", slog.String("error", rerr.Error()))
		} else {
			log.Debug("job released untouched")
		}

	default:
		retry := !IsUnrecoverable(err)
		state, ferr := c.broker.Fail(ctx, job, redact.Error(err), retry)
		if ferr != nil {
			outcome = OutcomeFailed
			log.Error("failed to record job failure",
				slog.String("error", ferr.Error()),
				slog.String("job_error", err.Error()))
			break
		}
		if state.IsFinished() {
			outcome = OutcomeFailed
			log.Error("job failed", slog.String("error", err.Error()))
		} else {
			outcome = OutcomeRetried
			log.Warn("job attempt failed, retry scheduled",
				slog.String("error", err.Error()),
				slog.String("state", string(state)),
				slog.Time("run_at", job.RunAt))
		}
	}

	if c.observer != nil {
		c.observer.ObserveJob(job, outcome, time.Since(start))
	}
	return outcome
}

// handle calls the handler, turning a panic into an error so the job's
// retry policy still applies.
func (c *Consumer) handle(ctx context.Context, job *Job) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.FromContextOrDefault(ctx, c.logger).Error("handler panicked",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return c.handler.Handle(ctx, job)
}

// heartbeat extends the lease of job every HeartbeatInterval until ctx is
// done. If the lease is lost, lost is called so the handler stops working
// on a job another consumer may now hold. The returned channel is closed
// when the heartbeat has stopped.
func (c *Consumer) heartbeat(ctx context.Context, lost context.CancelFunc, job *Job) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		log := logger.FromContextOrDefault(ctx, c.logger)

		ticker := time.NewTicker(c.config.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			err := c.broker.Extend(ctx, job, c.config.Lease)
			switch {
			case err == nil:
			case errors.Is(err, ErrLockLost):
				log.Warn("job lease lost, cancelling attempt")
				lost()
				return
			case ctx.Err() != nil:
				return
			default:
				log.Error("failed to extend job lease", slog.String("error", err.Error()))
			}
		}
	}()
	return done
}

// sweepStalled periodically runs SweepStalled.
func (c *Consumer) sweepStalled(ctx context.Context) {
	ticker := time.NewTicker(c.config.StalledCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.SweepStalled(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("stalled job sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// SweepStalled requeues or fails jobs whose lease expired. Jobs it fails are
// passed to the handler when it implements StalledHandler.
func (c *Consumer) SweepStalled(ctx context.Context) error {
	sweep, err := c.broker.RequeueStalled(ctx, c.config.Queue)
	if err != nil {
		return err
	}

	stalled, notify := c.handler.(StalledHandler)
	for _, job := range sweep.Failed {
		log := c.logger.With(
			slog.String("job_id", job.ID),
			slog.String("job_name", job.Name),
			slog.Int("attempts_made", job.AttemptsMade))
		log.Error("job failed after stalling")

		if notify {
			stalled.HandleStalled(logger.WithLogger(ctx, log), job)
		}
		if c.observer != nil {
			c.observer.ObserveJob(job, OutcomeFailed, 0)
		}
	}
	return nil
}

func (c *Consumer) wait(ctx context.Context) {
	timer := time.NewTimer(c.config.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func defaultConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}
