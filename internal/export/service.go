package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/document-extractor/internal/pipeline"
	"github.com/joseph-ayodele/document-extractor/internal/repository"
)

const (
	documentsSheet = "Documents"
	fieldsSheet    = "Fields"
)

// DocumentLister is the part of the repository the exporter reads from.
type DocumentLister interface {
	ListDocuments(ctx context.Context, opts repository.ListOptions) ([]*repository.DocumentRecord, error)
}

// Service produces XLSX workbooks of extraction results.
type Service struct {
	docs   DocumentLister
	logger *slog.Logger
}

func NewService(docs DocumentLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger}
}

// ExportDocumentsXLSX returns a workbook of stored documents matching opts.
func (s *Service) ExportDocumentsXLSX(ctx context.Context, opts repository.ListOptions) ([]byte, error) {
	recs, err := s.docs.ListDocuments(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	responses := make([]pipeline.ExtractionResponse, len(recs))
	for i, r := range recs {
		responses[i] = r.Response
	}
	return s.WriteResponses(responses)
}

// WriteResponses renders one summary row per document on the Documents
// sheet and one row per extracted field on the Fields sheet.
func (s *Service) WriteResponses(responses []pipeline.ExtractionResponse) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", documentsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(fieldsSheet); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(documentsSheet)
	f.SetActiveSheet(idx)

	writeRow(f, documentsSheet, 1, "Document ID", "Filename", "Document Type", "Status",
		"Overall Confidence", "Requires Review", "Model", "Errors", "Processing Time (ms)", "Created At")
	writeRow(f, fieldsSheet, 1, "Document ID", "Filename", "Field", "Value", "Confidence")

	fieldRow := 2
	for i, r := range responses {
		writeRow(f, documentsSheet, i+2,
			r.DocumentID,
			r.Filename,
			string(r.DocumentType),
			string(r.Status),
			r.OverallConfidence,
			r.RequiresReview,
			r.ModelUsed,
			truncate(errorSummary(r.Errors), 240),
			r.ProcessingTimeMs,
			r.CreatedAt.UTC().Format(time.RFC3339),
		)

		names := make([]string, 0, len(r.ExtractedData))
		for name := range r.ExtractedData {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			writeRow(f, fieldsSheet, fieldRow, r.DocumentID, r.Filename, name, cellValue(r.ExtractedData[name]), r.FieldConfidences[name])
			fieldRow++
		}
	}

	_ = f.SetColWidth(documentsSheet, "A", "A", 38)
	_ = f.SetColWidth(documentsSheet, "B", "B", 28)
	_ = f.SetColWidth(documentsSheet, "C", "D", 16)
	_ = f.SetColWidth(documentsSheet, "H", "H", 60)
	_ = f.SetColWidth(fieldsSheet, "A", "A", 38)
	_ = f.SetColWidth(fieldsSheet, "C", "C", 22)
	_ = f.SetColWidth(fieldsSheet, "D", "D", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"documents", len(responses),
		"field_rows", fieldRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// cellValue flattens arrays and objects; excelize only takes scalars.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string, float64, int, int64, bool:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = fmt.Sprint(cellValue(p))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(t)
	}
}

func errorSummary(errs []pipeline.ExtractionError) string {
	var b bytes.Buffer
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(string(e.Code))
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
