package constants

// DocumentStatus is the processing status reported for a document.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending        DocumentStatus = "pending"
	StatusProcessing     DocumentStatus = "processing"
	StatusCompleted      DocumentStatus = "completed"
	StatusFailed         DocumentStatus = "failed"
	StatusRequiresReview DocumentStatus = "requires_review"
)

// IsTerminal reports whether no further processing will change the status.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRequiresReview
}

// ErrorCode classifies entries in ExtractionResponse.Errors.
type ErrorCode string

const (
	ErrCodeProcessing    ErrorCode = "PROCESSING_ERROR" // uncaught failure while processing one document
	ErrCodeLLM           ErrorCode = "LLM_ERROR"        // every LLM engine failed
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR" // one per failed structural rule
	ErrCodeLowConfidence ErrorCode = "LOW_CONFIDENCE"   // aggregate confidence under threshold
)

// SuggestedAction returns the remediation hint attached to an error code.
func (c ErrorCode) SuggestedAction() string {
	switch c {
	case ErrCodeLLM:
		return "Try again or use different model"
	case ErrCodeValidation:
		return "Manual review required"
	case ErrCodeLowConfidence:
		return "Manual verification recommended"
	case ErrCodeProcessing:
		return "Check file format and try again"
	default:
		return ""
	}
}

// JobStatus is the canonical status for rows in extraction_jobs.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED" // terminal failure of the batch itself, not of a document
)
