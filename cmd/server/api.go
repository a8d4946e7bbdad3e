package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/phrazzld/evaluator/internal/api"
	"github.com/phrazzld/evaluator/internal/health"
	"github.com/phrazzld/evaluator/internal/service"
	"github.com/spf13/cobra"
)

func newAPICommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the evaluation HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			router, err := app.apiRouter()
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serveHTTP(ctx, srv, time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second, log)
		},
	}
}

// apiRouter wires the evaluation service and health checker into the router.
func (app *application) apiRouter() (http.Handler, error) {
	sources, err := app.sourceChecker()
	if err != nil {
		return nil, err
	}

	evaluations, err := service.NewEvaluationService(app.queue, app.records, sources, service.SubmissionPolicy{
		QueueName:   app.config.Queue.Name,
		MaxAttempts: app.config.Queue.MaxAttempts,
		BackoffBase: time.Duration(app.config.Queue.BackoffBaseMS) * time.Millisecond,
	}, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation service: %w", err)
	}

	checker := health.NewChecker(app.records, app.queue, 0, app.logger)

	return api.NewRouter(api.RouterConfig{
		Evaluations: api.NewEvaluationHandler(evaluations, app.logger),
		Health:      api.NewHealthHandler(checker),
		APIKey:      app.config.Auth.APIKey,
		Metrics:     app.metricsHandler(),
		Logger:      app.logger,
	}), nil
}
