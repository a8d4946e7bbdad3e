package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/platform/languagetool"
	"github.com/phrazzld/evaluator/internal/queue"
	"github.com/phrazzld/evaluator/internal/worker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	var evalType string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process evaluation jobs of one type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := domain.EvaluationType(evalType)
			if !t.Valid() {
				return fmt.Errorf("unsupported worker type %q, want text or audio", evalType)
			}

			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			app, err := newApplication(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.close()

			return app.runWorker(ctx, t)
		},
	}
	cmd.Flags().StringVarP(&evalType, "type", "t", "", "evaluation type to process: text or audio")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// evaluator builds the evaluator for evalType.
func (app *application) evaluator(evalType domain.EvaluationType) (worker.Evaluator, error) {
	switch evalType {
	case domain.EvaluationTypeText:
		client, err := languagetool.NewClient(app.config.Grammar, nil, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create grammar client: %w", err)
		}
		return worker.NewTextEvaluator(client, app.config.Grammar.DefaultLanguage, app.logger), nil
	case domain.EvaluationTypeAudio:
		sources, err := app.sourceChecker()
		if err != nil {
			return nil, err
		}
		return worker.NewAudioEvaluator(sources, app.logger), nil
	default:
		return nil, fmt.Errorf("no evaluator for type %q", evalType)
	}
}

// runWorker consumes jobs of evalType until ctx is done. Metrics are served
// alongside when a metrics port is configured.
func (app *application) runWorker(ctx context.Context, evalType domain.EvaluationType) error {
	evaluator, err := app.evaluator(evalType)
	if err != nil {
		return err
	}

	dispatcher := worker.NewDispatcher(app.records, app.logger)
	dispatcher.Register(evalType, evaluator)

	metrics, err := worker.NewMetrics(app.registry)
	if err != nil {
		return fmt.Errorf("failed to register worker metrics: %w", err)
	}

	wcfg := app.config.Worker
	consumer, err := queue.NewConsumer(app.queue, dispatcher, queue.ConsumerConfig{
		Queue:                app.config.Queue.Name,
		Names:                dispatcher.JobNames(),
		Concurrency:          wcfg.Concurrency,
		PollInterval:         time.Duration(wcfg.PollIntervalMS) * time.Millisecond,
		Lease:                time.Duration(wcfg.LeaseSeconds) * time.Second,
		StalledCheckInterval: time.Duration(wcfg.StalledCheckSeconds) * time.Second,
	}, metrics, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	app.logger.Info("worker starting",
		"type", string(evalType),
		"consumer_id", consumer.ID(),
		"concurrency", wcfg.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	if wcfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.metricsHandler())
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", wcfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		shutdown := time.Duration(app.config.Server.ShutdownTimeoutSeconds) * time.Second
		g.Go(func() error {
			return serveHTTP(gctx, srv, shutdown, app.logger)
		})
	}

	err = g.Wait()
	app.logger.Info("worker stopped", "type", string(evalType))
	return err
}
