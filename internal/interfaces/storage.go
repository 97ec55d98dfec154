package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/scribo/internal/models"
)

// ErrNotFound is returned when a record or file does not exist
var ErrNotFound = errors.New("not found")

// JobStorage persists generation jobs
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.GenerationJob) error
	GetJob(ctx context.Context, jobID string) (*models.GenerationJob, error)
	GetJobByDocument(ctx context.Context, documentID string) (*models.GenerationJob, error)
	ListJobsByStatus(ctx context.Context, statuses ...models.JobStatus) ([]*models.GenerationJob, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// DocumentStorage persists documents
type DocumentStorage interface {
	SaveDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, documentID string) (*models.Document, error)
	ListDocumentsByStatus(ctx context.Context, status models.DocumentStatus) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// FileStorage is the sink for rendered artifacts outside the primary store
type FileStorage interface {
	// Save writes data under folder/filename and returns a locator
	Save(ctx context.Context, data []byte, folder, filename string) (string, error)
	// Get returns the bytes for a locator, ErrNotFound if absent
	Get(ctx context.Context, locator string) ([]byte, error)
}
