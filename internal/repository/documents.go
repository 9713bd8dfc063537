package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/pipeline"
)

// DocumentRecord is a stored extraction result.
type DocumentRecord struct {
	Response       pipeline.ExtractionResponse
	Template       string
	ContentHash    string
	FileSize       int64
	OCRText        string
	RawLLMResponse string
	UpdatedAt      time.Time
}

// ListOptions filters ListDocuments. Zero values mean no filter.
type ListOptions struct {
	Status       constants.DocumentStatus
	DocumentType constants.DocumentType
	Limit        int
	Offset       int
}

const defaultListLimit = 50

var documentColumns = []string{
	"id", "filename", "file_size", "content_hash", "document_type", "status",
	"template", "extracted_data", "confidences", "overall_confidence",
	"ocr_text", "raw_llm_response", "errors", "requires_review",
	"processing_time_ms", "model_used", "created_at", "updated_at",
}

// SaveDocument upserts one processing result.
func (s *Store) SaveDocument(ctx context.Context, res pipeline.ProcessingResult) error {
	r := res.Response
	data, err := marshalText(r.ExtractedData)
	if err != nil {
		return fmt.Errorf("encode extracted_data: %w", err)
	}
	conf, err := marshalText(r.FieldConfidences)
	if err != nil {
		return fmt.Errorf("encode confidences: %w", err)
	}
	errs, err := marshalText(r.Errors)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	q := s.builder().Insert(documentsTable).
		Columns(documentColumns...).
		Values(
			r.DocumentID, r.Filename, res.FileSize, res.ContentHash, string(r.DocumentType), string(r.Status),
			res.Template, data, conf, r.OverallConfidence,
			res.Text, res.RawLLMResponse, errs, r.RequiresReview,
			r.ProcessingTimeMs, r.ModelUsed, created, time.Now().UTC(),
		).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWithNewValues(),
		)
	if err := s.exec(ctx, q); err != nil {
		s.logger.Error("db.document.save_failed", "document_id", r.DocumentID, "error", err)
		return common.NewAppError("DB_ERROR", "save document", errors.Join(common.ErrDatabase, err))
	}
	s.logger.Debug("db.document.saved", "document_id", r.DocumentID, "status", r.Status)
	return nil
}

// GetDocument loads one document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*DocumentRecord, error) {
	t := entsql.Table(documentsTable)
	q := s.builder().Select(documentColumns...).From(t).Where(entsql.EQ("id", id))
	recs, err := s.queryDocuments(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("document %s not found", id), common.ErrNotFound)
	}
	return recs[0], nil
}

// ListDocuments returns documents newest first.
func (s *Store) ListDocuments(ctx context.Context, opts ListOptions) ([]*DocumentRecord, error) {
	t := entsql.Table(documentsTable)
	q := s.builder().Select(documentColumns...).From(t)
	var preds []*entsql.Predicate
	if opts.Status != "" {
		preds = append(preds, entsql.EQ("status", string(opts.Status)))
	}
	if opts.DocumentType != "" {
		preds = append(preds, entsql.EQ("document_type", string(opts.DocumentType)))
	}
	if len(preds) > 0 {
		q = q.Where(entsql.And(preds...))
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	q = q.OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).Limit(limit)
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	return s.queryDocuments(ctx, q)
}

func (s *Store) queryDocuments(ctx context.Context, q *entsql.Selector) ([]*DocumentRecord, error) {
	query, args := q.Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		s.logger.Error("db.document.query_failed", "error", err)
		return nil, common.NewAppError("DB_ERROR", "query documents", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []*DocumentRecord
	for rows.Next() {
		var rec DocumentRecord
		r := &rec.Response
		var hash, tpl, ocrText, raw, model, data, conf, errs sql.NullString
		var docType, status string
		if err := rows.Scan(
			&r.DocumentID, &r.Filename, &rec.FileSize, &hash, &docType, &status,
			&tpl, &data, &conf, &r.OverallConfidence,
			&ocrText, &raw, &errs, &r.RequiresReview,
			&r.ProcessingTimeMs, &model, &r.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		r.DocumentType = constants.DocumentType(docType)
		r.Status = constants.DocumentStatus(status)
		r.ModelUsed = model.String
		rec.ContentHash = hash.String
		rec.Template = tpl.String
		rec.OCRText = ocrText.String
		rec.RawLLMResponse = raw.String
		r.CreatedAt = r.CreatedAt.UTC()
		if err := unmarshalText(data, &r.ExtractedData); err != nil {
			return nil, fmt.Errorf("decode extracted_data: %w", err)
		}
		if err := unmarshalText(conf, &r.FieldConfidences); err != nil {
			return nil, fmt.Errorf("decode confidences: %w", err)
		}
		if err := unmarshalText(errs, &r.Errors); err != nil {
			return nil, fmt.Errorf("decode errors: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func marshalText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalText(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}
