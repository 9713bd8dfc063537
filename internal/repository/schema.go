package repository

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
)

const (
	documentsTable = "documents"
	jobsTable      = "extraction_jobs"
)

// column types per dialect: text, float, integer, bool, timestamp
var columnTypes = map[string][5]string{
	dialect.Postgres: {"TEXT", "DOUBLE PRECISION", "BIGINT", "BOOLEAN", "TIMESTAMPTZ"},
	dialect.SQLite:   {"TEXT", "REAL", "INTEGER", "BOOLEAN", "TIMESTAMP"},
}

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS documents (
	id {text} PRIMARY KEY,
	filename {text} NOT NULL,
	file_size {int} NOT NULL DEFAULT 0,
	content_hash {text},
	document_type {text} NOT NULL,
	status {text} NOT NULL,
	template {text},
	extracted_data {text},
	confidences {text},
	overall_confidence {float} NOT NULL DEFAULT 0,
	ocr_text {text},
	raw_llm_response {text},
	errors {text},
	requires_review {bool} NOT NULL DEFAULT FALSE,
	processing_time_ms {int} NOT NULL DEFAULT 0,
	model_used {text},
	created_at {ts} NOT NULL,
	updated_at {ts} NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS documents_status_created_idx ON documents (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS documents_content_hash_idx ON documents (content_hash)`,
	`CREATE TABLE IF NOT EXISTS extraction_jobs (
	id {text} PRIMARY KEY,
	status {text} NOT NULL,
	total_documents {int} NOT NULL DEFAULT 0,
	processed_documents {int} NOT NULL DEFAULT 0,
	failed_documents {int} NOT NULL DEFAULT 0,
	document_ids {text},
	created_at {ts} NOT NULL,
	completed_at {ts}
)`,
}

// EnsureSchema creates the documents and extraction_jobs tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	types, ok := columnTypes[s.drv.Dialect()]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", s.drv.Dialect())
	}
	r := strings.NewReplacer("{text}", types[0], "{float}", types[1], "{int}", types[2], "{bool}", types[3], "{ts}", types[4])
	for _, stmt := range schemaDDL {
		if err := s.drv.Exec(ctx, r.Replace(stmt), []any{}, nil); err != nil {
			s.logger.Error("db.schema.failed", "error", err)
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	s.logger.Info("db.schema.ok", "dialect", s.drv.Dialect())
	return nil
}
