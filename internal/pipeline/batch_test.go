package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/async"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/extract"
	"github.com/joseph-ayodele/document-extractor/internal/ocr"
)

type recordingJobs struct {
	mu       sync.Mutex
	created  map[string]int
	updates  int
	lastIDs  []string
	complete constants.JobStatus
}

func (r *recordingJobs) CreateJob(_ context.Context, id string, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = map[string]int{id: total}
	return nil
}

func (r *recordingJobs) UpdateJobProgress(_ context.Context, _ string, _, _ int, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if len(ids) > len(r.lastIDs) {
		r.lastIDs = ids
	}
	return nil
}

func (r *recordingJobs) CompleteJob(_ context.Context, _ string, status constants.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = status
	return nil
}

func batchItems() []BatchItem {
	return []BatchItem{
		{Filename: "a.pdf", Content: []byte("%PDF a")},
		{Filename: "empty.pdf", Content: []byte{}},
		{Filename: "b.pdf", Content: []byte("%PDF b")},
		{Filename: "notes.txt", Content: []byte("plain")},
		{Filename: "c.pdf", Content: []byte("%PDF c")},
	}
}

func TestBatchRunPreservesOrderAndIsolatesFailures(t *testing.T) {
	for _, withPool := range []bool{false, true} {
		f := newFixture(t, extract.Content{Text: "Official transcript"}, ocr.Result{},
			fields("m", "student_name", "A", 0.9, "institution_name", "B", 0.9))
		var pool *async.Pool
		if withPool {
			pool = async.NewPool(nil, async.WithWorkers(3), async.WithQueueSize(2))
		}
		jobs := &recordingJobs{}
		runner := NewBatchRunner(f.orch, pool, jobs, 0, nil)

		res, err := runner.Run(context.Background(), batchItems())
		require.NoError(t, err)
		if pool != nil {
			pool.Shutdown(context.Background())
		}

		assert.Equal(t, 5, res.TotalDocuments)
		assert.Equal(t, 5, res.Processed)
		assert.Equal(t, 2, res.Failed)
		assert.Equal(t, constants.JobStatusCompleted, res.Status)
		require.Len(t, res.Results, 5)
		for i, want := range []string{"a.pdf", "empty.pdf", "b.pdf", "notes.txt", "c.pdf"} {
			assert.Equal(t, want, res.Results[i].Response.Filename, "position %d", i)
		}
		assert.Equal(t, constants.StatusCompleted, res.Results[0].Response.Status)
		assert.Equal(t, constants.StatusFailed, res.Results[1].Response.Status)
		assert.Contains(t, res.Results[3].Response.Errors[0].Message, "Unsupported file type")
		assert.Equal(t, 3, f.llm.Calls())

		assert.Equal(t, map[string]int{res.BatchID: 5}, jobs.created)
		assert.Equal(t, 5, jobs.updates)
		assert.Len(t, jobs.lastIDs, 5)
		assert.Equal(t, constants.JobStatusCompleted, jobs.complete)
		assert.Len(t, res.Responses(), 5)
	}
}

func TestBatchRejectsEmptyAndOversize(t *testing.T) {
	f := newFixture(t, extract.Content{}, ocr.Result{}, fields("m"))
	runner := NewBatchRunner(f.orch, nil, nil, 2, nil)

	_, err := runner.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = runner.Run(context.Background(), batchItems())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Contains(t, err.Error(), "exceeds maximum 2")
	assert.Zero(t, f.llm.Calls())
}

func TestBatchPanicIsolated(t *testing.T) {
	f := newFixture(t, extract.Content{}, ocr.Result{}, fields("m"))
	f.ext.panic = true
	pool := async.NewPool(nil, async.WithWorkers(2))
	defer pool.Shutdown(context.Background())

	res, err := NewBatchRunner(f.orch, pool, nil, 0, nil).Run(context.Background(), batchItems()[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, constants.ErrCodeProcessing, res.Results[0].Response.Errors[0].Code)
}
