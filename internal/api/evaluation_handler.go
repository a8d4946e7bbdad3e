package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/evaluator/internal/api/shared"
	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/platform/logger"
	"github.com/phrazzld/evaluator/internal/service"
)

// EvaluationHandler serves evaluation submission and status requests.
type EvaluationHandler struct {
	evaluations service.EvaluationService
	logger      *slog.Logger
}

// NewEvaluationHandler creates a new EvaluationHandler.
func NewEvaluationHandler(evaluations service.EvaluationService, logger *slog.Logger) *EvaluationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluationHandler{
		evaluations: evaluations,
		logger:      logger.With(slog.String("component", "evaluation_handler")),
	}
}

// SubmitText handles POST /api/evaluations/text.
func (h *EvaluationHandler) SubmitText(w http.ResponseWriter, r *http.Request) {
	var req TextEvaluationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.submit(w, r, domain.NewTextRequest(domain.TextPayload{
		Text:          req.Text,
		Language:      req.Language,
		RubricVersion: req.RubricVersion,
	}))
}

// SubmitAudio handles POST /api/evaluations/audio.
func (h *EvaluationHandler) SubmitAudio(w http.ResponseWriter, r *http.Request) {
	var req AudioEvaluationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.submit(w, r, domain.NewAudioRequest(domain.AudioPayload{
		SourceURL:     req.Source(),
		ReferenceText: req.ReferenceText,
		Language:      req.Language,
	}))
}

func (h *EvaluationHandler) submit(w http.ResponseWriter, r *http.Request, req domain.EvaluationRequest) {
	submission, err := h.evaluations.Submit(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit evaluation")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("evaluation accepted",
		slog.String("type", string(req.Type)),
		slog.String("record_id", submission.RecordID.String()),
		slog.String("job_id", submission.JobID))

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmissionResponse{
		RecordID: submission.RecordID.String(),
		JobID:    submission.JobID,
	})
}

// GetJobStatus handles GET /api/evaluations/jobs/{jobId}. Unknown jobs are
// reported as not_found with 200, matching the reconciled view.
func (h *EvaluationHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	shared.RespondWithJSON(w, r, http.StatusOK, h.evaluations.GetStatus(r.Context(), jobID))
}

// GetRecord handles GET /api/evaluations/{id}.
func (h *EvaluationHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	record, err := h.evaluations.GetRecord(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get evaluation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, record)
}
