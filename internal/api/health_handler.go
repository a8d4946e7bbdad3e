package api

import (
	"context"
	"net/http"

	"github.com/phrazzld/evaluator/internal/api/shared"
	"github.com/phrazzld/evaluator/internal/health"
)

// HealthReporter produces a health report.
type HealthReporter interface {
	Check(ctx context.Context) health.Report
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	reporter HealthReporter
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(reporter HealthReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// Health writes the report with 200 for ok or degraded and 503 for down.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.reporter.Check(r.Context())

	status := http.StatusOK
	if report.Status == health.StatusDown {
		status = http.StatusServiceUnavailable
	}
	shared.RespondWithJSON(w, r, status, report)
}
