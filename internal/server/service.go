// Package server exposes the extraction pipeline over HTTP and gRPC.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/export"
	"github.com/joseph-ayodele/document-extractor/internal/pipeline"
	"github.com/joseph-ayodele/document-extractor/internal/repository"
	"github.com/joseph-ayodele/document-extractor/internal/templates"
)

// DocumentStore is the read side of the repository.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*repository.DocumentRecord, error)
	ListDocuments(ctx context.Context, opts repository.ListOptions) ([]*repository.DocumentRecord, error)
	GetJob(ctx context.Context, id string) (*repository.JobRecord, error)
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Pinger reports whether a dependency answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires a Service. Only Orchestrator is required.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Batch        *pipeline.BatchRunner
	Store        DocumentStore
	Exporter     *export.Service
	LLM          Pinger
	Version      string
}

// Service implements the operations shared by both transports.
type Service struct {
	deps   Deps
	logger *slog.Logger
}

func NewService(deps Deps, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	if deps.Batch == nil {
		deps.Batch = pipeline.NewBatchRunner(deps.Orchestrator, nil, nil, 0, logger)
	}
	return &Service{deps: deps, logger: logger}
}

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	OllamaAvailable   bool   `json:"ollama_available"`
	DatabaseConnected bool   `json:"database_connected"`
}

const probeTimeout = 2 * time.Second

// Health probes the LLM host and the database. The service reports
// "degraded" rather than failing when either is down.
func (s *Service) Health(ctx context.Context) HealthStatus {
	h := HealthStatus{Status: "healthy", Version: s.deps.Version}
	if s.deps.LLM != nil {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		h.OllamaAvailable = s.deps.LLM.Ping(pctx) == nil
		cancel()
	}
	if s.deps.Store != nil {
		h.DatabaseConnected = s.deps.Store.HealthCheck(ctx, probeTimeout) == nil
	}
	if !h.OllamaAvailable || !h.DatabaseConnected {
		h.Status = "degraded"
	}
	return h
}

// Extract processes one uploaded document. Rejected uploads still produce a
// failed response; the error is reserved for malformed requests.
func (s *Service) Extract(ctx context.Context, filename string, content []byte, hint string) (pipeline.ExtractionResponse, error) {
	v := common.NewValidator().
		Field("filename", filename, common.Required, common.MaxLength(255)).
		Field("document_type", hint, common.MaxLength(64))
	if v.HasErrors() {
		return pipeline.ExtractionResponse{}, common.NewAppError("INVALID_REQUEST", v.ErrorMessage(), common.ErrInvalidInput)
	}
	res := s.deps.Orchestrator.ProcessBytes(ctx, content, filename, hint)
	return res.Response, nil
}

// ExtractBatch processes several uploads.
func (s *Service) ExtractBatch(ctx context.Context, items []pipeline.BatchItem) (pipeline.BatchResult, error) {
	return s.deps.Batch.Run(ctx, items)
}

// GetDocument loads a stored result.
func (s *Service) GetDocument(ctx context.Context, id string) (pipeline.ExtractionResponse, error) {
	v := common.NewValidator().Field("document_id", id, common.Required, common.UUID)
	if v.HasErrors() {
		return pipeline.ExtractionResponse{}, common.NewAppError("INVALID_REQUEST", v.ErrorMessage(), common.ErrInvalidInput)
	}
	if s.deps.Store == nil {
		return pipeline.ExtractionResponse{}, common.NewAppError("UNAVAILABLE", "persistence is not configured", common.ErrUnavailable)
	}
	rec, err := s.deps.Store.GetDocument(ctx, id)
	if err != nil {
		return pipeline.ExtractionResponse{}, err
	}
	return rec.Response, nil
}

// ListDocuments lists stored results, newest first.
func (s *Service) ListDocuments(ctx context.Context, opts repository.ListOptions) ([]pipeline.ExtractionResponse, error) {
	if s.deps.Store == nil {
		return nil, common.NewAppError("UNAVAILABLE", "persistence is not configured", common.ErrUnavailable)
	}
	recs, err := s.deps.Store.ListDocuments(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.ExtractionResponse, len(recs))
	for i, r := range recs {
		out[i] = r.Response
	}
	return out, nil
}

// GetJob loads a batch job record.
func (s *Service) GetJob(ctx context.Context, id string) (*repository.JobRecord, error) {
	if s.deps.Store == nil {
		return nil, common.NewAppError("UNAVAILABLE", "persistence is not configured", common.ErrUnavailable)
	}
	return s.deps.Store.GetJob(ctx, id)
}

// ExportXLSX renders stored documents as a workbook.
func (s *Service) ExportXLSX(ctx context.Context, opts repository.ListOptions) ([]byte, error) {
	if s.deps.Exporter == nil {
		return nil, common.NewAppError("UNAVAILABLE", "export is not configured", common.ErrUnavailable)
	}
	return s.deps.Exporter.ExportDocumentsXLSX(ctx, opts)
}

// ListTemplates describes every registered template.
func (s *Service) ListTemplates() []templates.Info {
	return s.deps.Orchestrator.Registry().Describe()
}

func isClientError(err error) bool {
	return errors.Is(err, common.ErrInvalidInput) || errors.Is(err, common.ErrValidation) || errors.Is(err, common.ErrNotFound)
}
