package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/evaluator/internal/api/middleware"
)

// RouterConfig holds the handlers and settings mounted by NewRouter.
type RouterConfig struct {
	Evaluations *EvaluationHandler
	Health      *HealthHandler
	// APIKey gates /api routes. Empty disables the gate.
	APIKey string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter builds the HTTP routes of the evaluation API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewTraceMiddleware(cfg.Logger))

	apiKey := middleware.NewAPIKeyMiddleware(cfg.APIKey, cfg.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiKey.Authenticate)

		r.Route("/evaluations", func(r chi.Router) {
			r.Post("/text", cfg.Evaluations.SubmitText)
			r.Post("/audio", cfg.Evaluations.SubmitAudio)
			r.Get("/jobs/{jobId}", cfg.Evaluations.GetJobStatus)
			r.Get("/{id}", cfg.Evaluations.GetRecord)
		})
	})

	r.Get("/health", cfg.Health.Health)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	return r
}
