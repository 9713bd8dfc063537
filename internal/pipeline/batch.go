package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/async"
	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// DefaultMaxBatch caps the number of documents per batch request.
const DefaultMaxBatch = 20

// BatchItem is one document submitted in a batch.
type BatchItem struct {
	Filename string
	Content  []byte
	Path     string // used when Content is nil
	Hint     string
}

// BatchResult lists per-document results in submission order.
type BatchResult struct {
	BatchID        string              `json:"batch_id"`
	TotalDocuments int                 `json:"total_documents"`
	Status         constants.JobStatus `json:"status"`
	Processed      int                 `json:"processed_documents"`
	Failed         int                 `json:"failed_documents"`
	Results        []ProcessingResult  `json:"results"`
}

// Responses returns just the externally visible responses.
func (b BatchResult) Responses() []ExtractionResponse {
	out := make([]ExtractionResponse, len(b.Results))
	for i, r := range b.Results {
		out[i] = r.Response
	}
	return out
}

// JobTracker records batch progress, e.g. in the extraction_jobs table.
type JobTracker interface {
	CreateJob(ctx context.Context, id string, total int) error
	UpdateJobProgress(ctx context.Context, id string, processed, failed int, documentIDs []string) error
	CompleteJob(ctx context.Context, id string, status constants.JobStatus) error
}

// BatchRunner fans a batch out over a worker pool. Each document is
// isolated: a failure or panic only affects its own result.
type BatchRunner struct {
	orch   *Orchestrator
	pool   *async.Pool
	jobs   JobTracker
	max    int
	logger *slog.Logger
}

// NewBatchRunner builds a runner. A nil pool processes documents one after
// another on the calling goroutine; jobs may be nil.
func NewBatchRunner(orch *Orchestrator, pool *async.Pool, jobs JobTracker, maxDocs int, logger *slog.Logger) *BatchRunner {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDocs <= 0 {
		maxDocs = DefaultMaxBatch
	}
	return &BatchRunner{orch: orch, pool: pool, jobs: jobs, max: maxDocs, logger: logger}
}

// Run processes items and waits for all of them. The error is non-nil only
// when the batch itself is rejected.
func (b *BatchRunner) Run(ctx context.Context, items []BatchItem) (BatchResult, error) {
	if len(items) == 0 {
		return BatchResult{}, common.NewAppError("INVALID_BATCH", "batch is empty", common.ErrInvalidInput)
	}
	if len(items) > b.max {
		msg := fmt.Sprintf("batch of %d documents exceeds maximum %d", len(items), b.max)
		return BatchResult{}, common.NewAppError("INVALID_BATCH", msg, common.ErrInvalidInput)
	}

	batch := BatchResult{
		BatchID:        uuid.NewString(),
		TotalDocuments: len(items),
		Status:         constants.JobStatusRunning,
		Results:        make([]ProcessingResult, len(items)),
	}
	b.track(func(t JobTracker) error { return t.CreateJob(ctx, batch.BatchID, len(items)) })
	b.logger.Info("batch.start", "batch_id", batch.BatchID, "documents", len(items))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	record := func(i int, res ProcessingResult) {
		mu.Lock()
		batch.Results[i] = res
		batch.Processed++
		if res.Response.Status == constants.StatusFailed {
			batch.Failed++
		}
		processed, failed := batch.Processed, batch.Failed
		ids := make([]string, 0, processed)
		for _, r := range batch.Results {
			if r.DocumentID != "" {
				ids = append(ids, r.DocumentID)
			}
		}
		mu.Unlock()
		b.track(func(t JobTracker) error { return t.UpdateJobProgress(ctx, batch.BatchID, processed, failed, ids) })
	}

	for i, item := range items {
		i, item := i, item
		if b.pool == nil {
			record(i, b.process(ctx, item))
			continue
		}
		wg.Add(1)
		job := async.Job{
			ID:      fmt.Sprintf("%s/%d", batch.BatchID, i),
			TraceID: batch.BatchID,
			Run: func(jobCtx context.Context) error {
				defer wg.Done()
				// the pool's timeout applies, and so does the caller's cancellation
				runCtx, cancel := context.WithCancel(jobCtx)
				stop := context.AfterFunc(ctx, cancel)
				defer stop()
				defer cancel()
				res := b.process(runCtx, item)
				record(i, res)
				if !res.Success {
					return errors.New(firstMessage(res))
				}
				return nil
			},
		}
		if err := b.pool.Enqueue(ctx, job); err != nil {
			wg.Done()
			start := time.Now()
			record(i, b.orch.failed(uuid.NewString(), item.Filename, StageReceived, fmt.Errorf("enqueue: %w", err), start))
		}
	}
	wg.Wait()

	batch.Status = constants.JobStatusCompleted
	b.track(func(t JobTracker) error { return t.CompleteJob(ctx, batch.BatchID, batch.Status) })
	b.logger.Info("batch.done", "batch_id", batch.BatchID, "processed", batch.Processed, "failed", batch.Failed)
	return batch, nil
}

func (b *BatchRunner) process(ctx context.Context, item BatchItem) ProcessingResult {
	if item.Content == nil && item.Path != "" {
		return b.orch.ProcessPath(ctx, item.Path, item.Hint)
	}
	return b.orch.ProcessBytes(ctx, item.Content, item.Filename, item.Hint)
}

func (b *BatchRunner) track(fn func(JobTracker) error) {
	if b.jobs == nil {
		return
	}
	if err := fn(b.jobs); err != nil {
		b.logger.Warn("batch.track_failed", "error", err)
	}
}

func firstMessage(res ProcessingResult) string {
	if len(res.Response.Errors) > 0 {
		return res.Response.Errors[0].Message
	}
	return string(res.Response.Status)
}
