package llm

import (
	"context"
)

// DefaultFieldConfidence is assigned to fields the engine returned as bare values.
const DefaultFieldConfidence = 0.5

// ExtractedField is one named value pulled out of document text.
type ExtractedField struct {
	Name       string  `json:"name"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"` // 0..1
	SourceText string  `json:"source_text,omitempty"`
}

// ExtractionResult is what an engine (or the fallback pipeline) produced for
// one document. On failure Success is false and Error is set; RawResponse is
// preserved verbatim either way.
type ExtractionResult struct {
	DocumentType string                    `json:"document_type"`
	Fields       map[string]ExtractedField `json:"fields"`
	RawResponse  string                    `json:"raw_response"`
	Model        string                    `json:"model_used"`
	Success      bool                      `json:"success"`
	Error        string                    `json:"error,omitempty"`
	Warnings     []string                  `json:"warnings,omitempty"`
}

// MeanConfidence averages confidence over all returned fields; 0 when none.
func (r ExtractionResult) MeanConfidence() float64 {
	if len(r.Fields) == 0 {
		return 0
	}
	var sum float64
	for _, f := range r.Fields {
		sum += f.Confidence
	}
	return sum / float64(len(r.Fields))
}

// Failed builds an unsuccessful result.
func Failed(documentType, model, raw, msg string) ExtractionResult {
	return ExtractionResult{
		DocumentType: documentType,
		Fields:       map[string]ExtractedField{},
		RawResponse:  raw,
		Model:        model,
		Success:      false,
		Error:        msg,
	}
}

// Request names the text to read and the schema to fill.
type Request struct {
	Text         string
	DocumentType string
	FieldNames   []string
}

// Engine turns document text into fields. Transport and protocol errors are
// returned as errors; unparseable model output is an unsuccessful result.
type Engine interface {
	Name() string
	Extract(ctx context.Context, req Request) (ExtractionResult, error)
}
