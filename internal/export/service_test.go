package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/pipeline"
	"github.com/joseph-ayodele/document-extractor/internal/repository"
)

type fakeLister struct {
	recs []*repository.DocumentRecord
	err  error
	opts repository.ListOptions
}

func (f *fakeLister) ListDocuments(_ context.Context, opts repository.ListOptions) ([]*repository.DocumentRecord, error) {
	f.opts = opts
	return f.recs, f.err
}

func sample() pipeline.ExtractionResponse {
	return pipeline.ExtractionResponse{
		DocumentID:        "doc-1",
		Status:            constants.StatusRequiresReview,
		DocumentType:      constants.DocTypeTranscript,
		Filename:          "t.pdf",
		ExtractedData:     map[string]any{"student_name": "Asha Rao", "gpa": 8.7, "courses": []any{"Maths", "Physics"}, "student_id": nil},
		FieldConfidences:  map[string]float64{"student_name": 0.9, "gpa": 0.8, "courses": 0.7, "student_id": 0},
		OverallConfidence: 0.8,
		Errors: []pipeline.ExtractionError{
			{Code: constants.ErrCodeValidation, Field: "institution_name", Message: "Required field 'Institution Name' is missing"},
		},
		RequiresReview: true,
		ModelUsed:      "ollama/llama3.2",
		CreatedAt:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestExportDocumentsXLSX(t *testing.T) {
	lister := &fakeLister{recs: []*repository.DocumentRecord{{Response: sample()}}}
	svc := NewService(lister, nil)

	out, err := svc.ExportDocumentsXLSX(context.Background(), repository.ListOptions{Status: constants.StatusRequiresReview})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusRequiresReview, lister.opts.Status)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(documentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Document ID", rows[0][0])
	assert.Equal(t, "doc-1", rows[1][0])
	assert.Equal(t, "transcript", rows[1][2])
	assert.Equal(t, "requires_review", rows[1][3])
	assert.Contains(t, rows[1][7], "VALIDATION_ERROR: Required field 'Institution Name' is missing")
	assert.Equal(t, "2024-05-01T10:00:00Z", rows[1][9])

	fields, err := f.GetRows(fieldsSheet)
	require.NoError(t, err)
	require.Len(t, fields, 5)
	assert.Equal(t, []string{"doc-1", "t.pdf", "courses", "Maths; Physics", "0.7"}, fields[1])
	assert.Equal(t, "gpa", fields[2][2])
	assert.Equal(t, "student_id", fields[3][2])
	assert.Equal(t, "Asha Rao", fields[4][3])
}

func TestExportPropagatesListError(t *testing.T) {
	svc := NewService(&fakeLister{err: errors.New("db down")}, nil)
	_, err := svc.ExportDocumentsXLSX(context.Background(), repository.ListOptions{})
	assert.ErrorContains(t, err, "db down")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
