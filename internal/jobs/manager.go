// -----------------------------------------------------------------------
// Jobs Manager - job lifecycle operations and invariants
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// ErrJobInProgress is returned when a document already has a live job
var ErrJobInProgress = errors.New("document already has a generation job in progress")

// Manager owns job lifecycle operations: creation, cancellation and retry.
// It enforces the one-live-job-per-document invariant and keeps the task
// queue in sync with job state.
type Manager struct {
	jobStore interfaces.JobStorage
	docStore interfaces.DocumentStorage
	queue    interfaces.TaskQueue
	config   *common.Config
	logger   arbor.ILogger
}

// NewManager creates a jobs manager
func NewManager(jobStore interfaces.JobStorage, docStore interfaces.DocumentStorage, queue interfaces.TaskQueue, config *common.Config, logger arbor.ILogger) *Manager {
	return &Manager{
		jobStore: jobStore,
		docStore: docStore,
		queue:    queue,
		config:   config,
		logger:   logger,
	}
}

// CreateJob creates and enqueues a generation job for a document. A
// document can have at most one non-terminal job; a second request is
// rejected with ErrJobInProgress.
func (m *Manager) CreateJob(ctx context.Context, documentID string) (*models.GenerationJob, error) {
	doc, err := m.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	if err := doc.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation options: %w", err)
	}

	existing, err := m.jobStore.GetJobByDocument(ctx, documentID)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return nil, fmt.Errorf("checking existing jobs: %w", err)
	}
	if existing != nil && !existing.IsTerminal() {
		return nil, ErrJobInProgress
	}

	job := models.NewGenerationJob(documentID)
	if err := m.jobStore.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("saving job: %w", err)
	}

	taskID, err := m.queue.Enqueue(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("enqueuing job: %w", err)
	}
	job.TaskID = taskID
	if err := m.jobStore.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("saving job task handle: %w", err)
	}

	m.logger.Info().
		Str("job_id", job.ID).
		Str("document_id", documentID).
		Str("task_id", taskID).
		Msg("Generation job created")
	return job, nil
}

// GetJob returns a job by ID
func (m *Manager) GetJob(ctx context.Context, jobID string) (*models.GenerationJob, error) {
	return m.jobStore.GetJob(ctx, jobID)
}

// GetJobByDocument returns the most recent job for a document
func (m *Manager) GetJobByDocument(ctx context.Context, documentID string) (*models.GenerationJob, error) {
	return m.jobStore.GetJobByDocument(ctx, documentID)
}

// Cancel stops a non-terminal job: its queued task is removed when still
// present and the document reverts to draft when no content was written,
// otherwise the document keeps its current status for inspection.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	job, err := m.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job: %w", err)
	}
	if err := job.MarkCanceled(); err != nil {
		return err
	}

	if job.TaskID != "" {
		if err := m.queue.Cancel(ctx, job.TaskID); err != nil {
			m.logger.Warn().Err(err).Str("task_id", job.TaskID).Msg("Failed to remove queued task")
		}
	}
	if err := m.jobStore.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("saving canceled job: %w", err)
	}

	doc, err := m.docStore.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document: %w", err)
	}
	if doc.Content == nil {
		doc.MarkDraft()
		if err := m.docStore.SaveDocument(ctx, doc); err != nil {
			return fmt.Errorf("saving document: %w", err)
		}
	}

	m.logger.Info().Str("job_id", jobID).Msg("Generation job canceled")
	return nil
}

// Retry re-enqueues a failed job for a fresh full-pipeline run, bounded by
// the configured retry cap.
func (m *Manager) Retry(ctx context.Context, jobID string) (*models.GenerationJob, error) {
	job, err := m.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	if err := job.ResetForRetry(m.config.Generation.MaxRetries); err != nil {
		return nil, err
	}

	taskID, err := m.queue.Enqueue(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("enqueuing retry: %w", err)
	}
	job.TaskID = taskID
	if err := m.jobStore.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("saving retried job: %w", err)
	}

	m.logger.Info().
		Str("job_id", jobID).
		Int("retry_count", job.RetryCount).
		Msg("Generation job re-enqueued")
	return job, nil
}

// ListActive returns all non-terminal jobs
func (m *Manager) ListActive(ctx context.Context) ([]*models.GenerationJob, error) {
	return m.jobStore.ListJobsByStatus(ctx,
		models.JobStatusPending,
		models.JobStatusResearching,
		models.JobStatusWriting,
		models.JobStatusRendering,
	)
}
