package api

// TextEvaluationRequest is the body of POST /api/evaluations/text.
type TextEvaluationRequest struct {
	Text          string `json:"text"                    validate:"required"`
	Language      string `json:"language,omitempty"      validate:"max=16"`
	RubricVersion string `json:"rubricVersion,omitempty" validate:"max=64"`
}

// AudioEvaluationRequest is the body of POST /api/evaluations/audio.
// S3URL is accepted as an alias of SourceURL for older clients.
type AudioEvaluationRequest struct {
	SourceURL     string `json:"sourceUrl"               validate:"required_without=S3URL"`
	S3URL         string `json:"s3Url,omitempty"`
	ReferenceText string `json:"referenceText,omitempty" validate:"max=10000"`
	Language      string `json:"language,omitempty"      validate:"max=16"`
}

// Source returns the audio location, preferring SourceURL.
func (r AudioEvaluationRequest) Source() string {
	if r.SourceURL != "" {
		return r.SourceURL
	}
	return r.S3URL
}

// SubmissionResponse is returned with 202 Accepted for a queued evaluation.
type SubmissionResponse struct {
	RecordID string `json:"recordId"`
	JobID    string `json:"jobId"`
}
