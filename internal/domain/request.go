package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultLanguage is used when a request does not name one.
const DefaultLanguage = "en-US"

// TextPayload is the job payload for a text evaluation.
type TextPayload struct {
	Text          string `json:"text"`
	Language      string `json:"language,omitempty"`
	RubricVersion string `json:"rubricVersion,omitempty"`
}

// Validate rejects a payload without text.
func (p TextPayload) Validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return NewValidationError("text", "must not be empty")
	}
	return nil
}

// AudioPayload is the job payload for an audio evaluation.
type AudioPayload struct {
	SourceURL     string `json:"sourceUrl"`
	ReferenceText string `json:"referenceText,omitempty"`
	Language      string `json:"language,omitempty"`
}

// Validate rejects a payload without a source URL. Scheme and bucket rules
// belong to the object-store validator.
func (p AudioPayload) Validate() error {
	if strings.TrimSpace(p.SourceURL) == "" {
		return NewValidationError("sourceUrl", "must not be empty")
	}
	return nil
}

// EvaluationRequest is a submission tagged by Type. Exactly one of Text and
// Audio is set, matching the tag.
type EvaluationRequest struct {
	Type  EvaluationType
	Text  *TextPayload
	Audio *AudioPayload
}

// NewTextRequest builds a text request.
func NewTextRequest(p TextPayload) EvaluationRequest {
	return EvaluationRequest{Type: EvaluationTypeText, Text: &p}
}

// NewAudioRequest builds an audio request.
func NewAudioRequest(p AudioPayload) EvaluationRequest {
	return EvaluationRequest{Type: EvaluationTypeAudio, Audio: &p}
}

// Validate checks the tag against the populated payload and the payload itself.
func (r EvaluationRequest) Validate() error {
	switch r.Type {
	case EvaluationTypeText:
		if r.Text == nil || r.Audio != nil {
			return NewValidationError("type", "text request requires a text payload")
		}
		return r.Text.Validate()
	case EvaluationTypeAudio:
		if r.Audio == nil || r.Text != nil {
			return NewValidationError("type", "audio request requires an audio payload")
		}
		return r.Audio.Validate()
	default:
		return NewValidationError("type", fmt.Sprintf("unsupported evaluation type %q", r.Type))
	}
}

// Payload returns the normalized payload for the job and the record input.
func (r EvaluationRequest) Payload() (json.RawMessage, error) {
	switch r.Type {
	case EvaluationTypeText:
		p := *r.Text
		p.Text = strings.TrimSpace(p.Text)
		p.Language = strings.TrimSpace(p.Language)
		p.RubricVersion = strings.TrimSpace(p.RubricVersion)
		return json.Marshal(p)
	case EvaluationTypeAudio:
		p := *r.Audio
		p.SourceURL = strings.TrimSpace(p.SourceURL)
		p.Language = strings.TrimSpace(p.Language)
		return json.Marshal(p)
	default:
		return nil, ErrInvalidEvaluationType
	}
}
