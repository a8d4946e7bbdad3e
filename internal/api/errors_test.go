package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/service"
	"github.com/phrazzld/evaluator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"nil error", nil, http.StatusInternalServerError},
		{"validation error", domain.NewValidationError("sourceUrl", "s3Url must be https"), http.StatusBadRequest},
		{"invalid id", domain.ErrInvalidID, http.StatusBadRequest},
		{"invalid entity", fmt.Errorf("create: %w", store.ErrInvalidEntity), http.StatusBadRequest},
		{"service not found", service.ErrEvaluationNotFound, http.StatusNotFound},
		{"store not found", store.ErrEvaluationNotFound, http.StatusNotFound},
		{
			"dependency unavailable",
			domain.NewDependencyError("languagetool", errors.New("timeout")),
			http.StatusServiceUnavailable,
		},
		{
			"orphaned job",
			&service.OrphanedJobError{JobID: "42", Err: errors.New("insert failed")},
			http.StatusInternalServerError,
		},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStatus, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, "An unexpected error occurred"},
		{
			"field validation",
			domain.NewValidationError("sourceUrl", "s3Url must be https"),
			"sourceUrl: s3Url must be https",
		},
		{"not found", fmt.Errorf("get: %w", service.ErrEvaluationNotFound), "Evaluation not found"},
		{
			"orphaned job hides cause",
			&service.OrphanedJobError{JobID: "42", Err: errors.New("postgres://u:p@db failed")},
			"Failed to record evaluation",
		},
		{"unknown error", errors.New("pq: relation evaluations does not exist"), "An unexpected error occurred"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	v := validator.New()

	err := v.Struct(TextEvaluationRequest{})
	require.Error(t, err)
	assert.Equal(t, "Invalid Text: required field", SanitizeValidationError(err))

	err = v.Struct(AudioEvaluationRequest{})
	require.Error(t, err)
	assert.Equal(t, "Invalid SourceURL: required field", SanitizeValidationError(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}
