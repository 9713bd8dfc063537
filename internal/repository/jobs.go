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
)

// JobRecord is one row of extraction_jobs.
type JobRecord struct {
	ID                 string              `json:"job_id"`
	Status             constants.JobStatus `json:"status"`
	TotalDocuments     int                 `json:"total_documents"`
	ProcessedDocuments int                 `json:"processed_documents"`
	FailedDocuments    int                 `json:"failed_documents"`
	DocumentIDs        []string            `json:"document_ids"`
	CreatedAt          time.Time           `json:"created_at"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
}

// CreateJob inserts a RUNNING job.
func (s *Store) CreateJob(ctx context.Context, id string, total int) error {
	q := s.builder().Insert(jobsTable).
		Columns("id", "status", "total_documents", "processed_documents", "failed_documents", "document_ids", "created_at").
		Values(id, string(constants.JobStatusRunning), total, 0, 0, "[]", time.Now().UTC())
	if err := s.exec(ctx, q); err != nil {
		s.logger.Error("db.job.create_failed", "job_id", id, "error", err)
		return common.NewAppError("DB_ERROR", "create job", errors.Join(common.ErrDatabase, err))
	}
	s.logger.Info("db.job.created", "job_id", id, "total", total)
	return nil
}

// UpdateJobProgress records counters and the ids of finished documents.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, processed, failed int, documentIDs []string) error {
	if documentIDs == nil {
		documentIDs = []string{}
	}
	ids, err := json.Marshal(documentIDs)
	if err != nil {
		return fmt.Errorf("encode document_ids: %w", err)
	}
	q := s.builder().Update(jobsTable).
		Set("processed_documents", processed).
		Set("failed_documents", failed).
		Set("document_ids", string(ids)).
		Where(entsql.EQ("id", id))
	return s.updateJob(ctx, id, q)
}

// CompleteJob sets a terminal status and the completion time.
func (s *Store) CompleteJob(ctx context.Context, id string, status constants.JobStatus) error {
	q := s.builder().Update(jobsTable).
		Set("status", string(status)).
		Set("completed_at", time.Now().UTC()).
		Where(entsql.EQ("id", id))
	if err := s.updateJob(ctx, id, q); err != nil {
		return err
	}
	s.logger.Info("db.job.completed", "job_id", id, "status", status)
	return nil
}

func (s *Store) updateJob(ctx context.Context, id string, q *entsql.UpdateBuilder) error {
	n, err := s.execAffected(ctx, q)
	if err != nil {
		s.logger.Error("db.job.update_failed", "job_id", id, "error", err)
		return common.NewAppError("DB_ERROR", "update job", errors.Join(common.ErrDatabase, err))
	}
	if n == 0 {
		return common.NewAppError("NOT_FOUND", fmt.Sprintf("job %s not found", id), common.ErrNotFound)
	}
	return nil
}

// GetJob loads one job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*JobRecord, error) {
	q := s.builder().
		Select("id", "status", "total_documents", "processed_documents", "failed_documents", "document_ids", "created_at", "completed_at").
		From(entsql.Table(jobsTable)).
		Where(entsql.EQ("id", id))
	query, args := q.Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, common.NewAppError("DB_ERROR", "query job", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("job %s not found", id), common.ErrNotFound)
	}

	var (
		job       JobRecord
		status    string
		ids       sql.NullString
		completed sql.NullTime
	)
	if err := rows.Scan(&job.ID, &status, &job.TotalDocuments, &job.ProcessedDocuments, &job.FailedDocuments, &ids, &job.CreatedAt, &completed); err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Status = constants.JobStatus(status)
	job.CreatedAt = job.CreatedAt.UTC()
	if completed.Valid {
		t := completed.Time.UTC()
		job.CompletedAt = &t
	}
	if err := unmarshalText(ids, &job.DocumentIDs); err != nil {
		return nil, fmt.Errorf("decode document_ids: %w", err)
	}
	return &job, nil
}
