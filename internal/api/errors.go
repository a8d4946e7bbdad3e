package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/evaluator/internal/api/shared"
	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/service"
	"github.com/phrazzld/evaluator/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing the error types to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrEvaluationNotFound),
		errors.Is(err, store.ErrEvaluationNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for err. Validation
// messages are built from field names and rules, never from raw input.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var (
		fieldErr       *domain.ValidationError
		validationErrs validator.ValidationErrors
		orphaned       *service.OrphanedJobError
	)

	switch {
	case errors.As(err, &fieldErr):
		return fieldErr.Error()

	case errors.As(err, &validationErrs):
		return SanitizeValidationError(validationErrs)

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID format"

	case errors.Is(err, service.ErrEvaluationNotFound),
		errors.Is(err, store.ErrEvaluationNotFound):
		return "Evaluation not found"

	case errors.As(err, &orphaned):
		return "Failed to record evaluation"

	case errors.Is(err, domain.ErrDependencyUnavailable):
		return "A required service is unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError describes the first failed field of a struct
// validation error.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "Validation error"
	}
	fe := validationErrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required", "required_without":
		return "required field"
	case "url":
		return "invalid URL"
	case "max":
		return "too long"
	case "min":
		return "too short"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the status and safe message for err. A non-empty
// fallback replaces the generic message for unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
