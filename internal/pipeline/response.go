package pipeline

import (
	"time"

	"github.com/joseph-ayodele/document-extractor/constants"
)

// ExtractionError is one structured problem reported for a document.
type ExtractionError struct {
	Code            constants.ErrorCode `json:"code"`
	Field           string              `json:"field,omitempty"`
	Message         string              `json:"message"`
	SuggestedAction string              `json:"suggested_action,omitempty"`
}

func newError(code constants.ErrorCode, field, msg string) ExtractionError {
	return ExtractionError{Code: code, Field: field, Message: msg, SuggestedAction: code.SuggestedAction()}
}

// ExtractionResponse is the externally visible result for one document. It
// is built once per processed document and not changed afterwards.
type ExtractionResponse struct {
	DocumentID        string                   `json:"document_id"`
	Status            constants.DocumentStatus `json:"status"`
	DocumentType      constants.DocumentType   `json:"document_type"`
	Filename          string                   `json:"filename"`
	ExtractedData     map[string]any           `json:"extracted_data"`
	FieldConfidences  map[string]float64       `json:"field_confidences"`
	OverallConfidence float64                  `json:"overall_confidence"`
	Errors            []ExtractionError        `json:"errors"`
	RequiresReview    bool                     `json:"requires_review"`
	ProcessingTimeMs  int64                    `json:"processing_time_ms"`
	ModelUsed         string                   `json:"model_used,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
}

// ProcessingResult wraps the response with the intermediate artifacts that
// persistence and debugging need.
type ProcessingResult struct {
	DocumentID     string             `json:"document_id"`
	Success        bool               `json:"success"`
	Response       ExtractionResponse `json:"response"`
	Template       string             `json:"template,omitempty"`
	Text           string             `json:"ocr_text,omitempty"`
	RawLLMResponse string             `json:"raw_llm_response,omitempty"`
	OCRUsed        bool               `json:"ocr_used"`
	OCRConfidence  float64            `json:"ocr_confidence,omitempty"`
	ContentHash    string             `json:"content_hash,omitempty"`
	FileSize       int64              `json:"file_size"`
	FailedStage    Stage              `json:"failed_stage,omitempty"`
	Cached         bool               `json:"cached,omitempty"`
}

// Stage is a step of the per-document state machine.
type Stage string

const (
	StageReceived   Stage = "received"
	StageExtracted  Stage = "text_extracted"
	StageClassified Stage = "classified"
	StageLLM        Stage = "llm_extracted"
	StageValidated  Stage = "validated"
)
