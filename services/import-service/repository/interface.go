package repository

import (
	"context"
	"errors"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
)

var (
	ErrJobNotFound    = errors.New("import job not found")
	ErrSourceNotFound = errors.New("stored upload not found")
)

// JobStore persists async import job state.
type JobStore interface {
	Save(ctx context.Context, job *models.ImportJob) error
	Get(ctx context.Context, id string) (*models.ImportJob, error)
	Delete(ctx context.Context, id string) error
}

// JobHandler processes one dequeued job ID. Returning an error leaves the
// message for redelivery where the queue supports it.
type JobHandler func(ctx context.Context, jobID string) error

// JobQueue hands job IDs from the HTTP layer to the worker.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Consume blocks until ctx is cancelled.
	Consume(ctx context.Context, handle JobHandler) error
}

// SourceStore keeps the uploaded file until the worker has read it.
type SourceStore interface {
	Put(ctx context.Context, jobID, filename string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// HistoryRepo keeps a summary of every finished job.
type HistoryRepo interface {
	Save(ctx context.Context, entry models.HistoryEntry) error
	// List returns the newest entries first; an empty project lists all.
	List(ctx context.Context, project string, limit int) ([]models.HistoryEntry, error)
}
