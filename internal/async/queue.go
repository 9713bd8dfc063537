package async

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Enqueue after Shutdown has started.
var ErrClosed = errors.New("queue is shutting down")

// Job is one unit of work. Run receives a context bounded by the queue's
// per-job timeout.
type Job struct {
	ID          string
	SubmittedAt time.Time
	TraceID     string
	Run         func(ctx context.Context) error
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
