package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EvaluationType is the tag that discriminates requests, payloads and jobs.
type EvaluationType string

// Supported evaluation types.
const (
	EvaluationTypeText  EvaluationType = "text"
	EvaluationTypeAudio EvaluationType = "audio"
)

// Job names used on the shared evaluation queue.
const (
	JobNameTextEvaluation  = "text-evaluation"
	JobNameAudioEvaluation = "audio-evaluation"
)

// JobName returns the queue job name for t, or "" for an unknown type.
func (t EvaluationType) JobName() string {
	switch t {
	case EvaluationTypeText:
		return JobNameTextEvaluation
	case EvaluationTypeAudio:
		return JobNameAudioEvaluation
	default:
		return ""
	}
}

// Valid reports whether t is a supported evaluation type.
func (t EvaluationType) Valid() bool {
	return t == EvaluationTypeText || t == EvaluationTypeAudio
}

// TypeForJobName is the inverse of JobName.
func TypeForJobName(name string) (EvaluationType, bool) {
	switch name {
	case JobNameTextEvaluation:
		return EvaluationTypeText, true
	case JobNameAudioEvaluation:
		return EvaluationTypeAudio, true
	default:
		return "", false
	}
}

// EvaluationStatus represents the processing state of an evaluation record.
type EvaluationStatus string

// Possible evaluation status values
const (
	EvaluationStatusPending    EvaluationStatus = "pending"
	EvaluationStatusProcessing EvaluationStatus = "processing"
	EvaluationStatusCompleted  EvaluationStatus = "completed"
	EvaluationStatusFailed     EvaluationStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s EvaluationStatus) IsTerminal() bool {
	return s == EvaluationStatusCompleted || s == EvaluationStatusFailed
}

// CanTransition reports whether a record in status from may move to status to.
// Re-entering processing is allowed so that redelivered jobs can record
// another attempt; nothing leaves a terminal status.
func CanTransition(from, to EvaluationStatus) bool {
	switch from {
	case EvaluationStatusPending:
		return to == EvaluationStatusProcessing ||
			to == EvaluationStatusCompleted ||
			to == EvaluationStatusFailed
	case EvaluationStatusProcessing:
		return to == EvaluationStatusProcessing ||
			to == EvaluationStatusCompleted ||
			to == EvaluationStatusFailed
	default:
		return false
	}
}

func isValidEvaluationStatus(status EvaluationStatus) bool {
	switch status {
	case EvaluationStatusPending, EvaluationStatusProcessing,
		EvaluationStatusCompleted, EvaluationStatusFailed:
		return true
	default:
		return false
	}
}

// Feedback is the human-readable part of an evaluation result.
type Feedback struct {
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// EvaluationRecord is the durable document describing one accepted request.
type EvaluationRecord struct {
	ID        uuid.UUID        `json:"id"`
	Type      EvaluationType   `json:"type"`
	JobID     string           `json:"jobId"`
	Input     json.RawMessage  `json:"input"`
	Status    EvaluationStatus `json:"status"`
	Scores    ScoreSet         `json:"scores,omitempty"`
	Feedback  *Feedback        `json:"feedback,omitempty"`
	Error     string           `json:"error,omitempty"`
	Attempts  int              `json:"attempts"`
	LastError string           `json:"lastError,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// NewEvaluationRecord creates a pending record for an accepted request whose
// job has already been enqueued.
func NewEvaluationRecord(evalType EvaluationType, jobID string, input json.RawMessage) (*EvaluationRecord, error) {
	now := time.Now().UTC()
	record := &EvaluationRecord{
		ID:        uuid.New(),
		Type:      evalType,
		JobID:     jobID,
		Input:     input,
		Status:    EvaluationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// Validate checks field presence and the status/result invariants:
// scores and feedback are present iff completed, error iff failed.
func (r *EvaluationRecord) Validate() error {
	if r.ID == uuid.Nil {
		return ErrInvalidID
	}
	if !r.Type.Valid() {
		return ErrInvalidEvaluationType
	}
	if r.JobID == "" {
		return ErrInvalidID
	}
	if len(r.Input) == 0 {
		return ErrEmptyContent
	}
	if !isValidEvaluationStatus(r.Status) {
		return ErrInvalidEvaluationStatus
	}

	hasResult := r.Scores != nil || r.Feedback != nil
	switch r.Status {
	case EvaluationStatusCompleted:
		if r.Scores == nil || r.Feedback == nil || r.Error != "" {
			return ErrInconsistentResult
		}
		if err := r.Scores.Validate(); err != nil {
			return err
		}
	case EvaluationStatusFailed:
		if hasResult || r.Error == "" {
			return ErrInconsistentResult
		}
	default:
		if hasResult || r.Error != "" {
			return ErrInconsistentResult
		}
	}
	return nil
}

// JobResult is the return value stored on a completed job.
type JobResult struct {
	Success  bool     `json:"success"`
	Scores   ScoreSet `json:"scores"`
	Feedback Feedback `json:"feedback"`
}
