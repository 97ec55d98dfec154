package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// Sweeper periodically fails jobs stuck past the stage timeout. A job whose
// worker died mid-pipeline stays non-terminal with a stale updated_at; the
// sweep converts those to failed so they become retryable.
type Sweeper struct {
	jobStore     interfaces.JobStorage
	docStore     interfaces.DocumentStorage
	stageTimeout time.Duration
	schedule     string
	cron         *cron.Cron
	logger       arbor.ILogger
}

// NewSweeper creates a stuck-job sweeper
func NewSweeper(jobStore interfaces.JobStorage, docStore interfaces.DocumentStorage, cfg *common.Config, logger arbor.ILogger) *Sweeper {
	return &Sweeper{
		jobStore:     jobStore,
		docStore:     docStore,
		stageTimeout: cfg.Generation.StageTimeoutDuration(),
		schedule:     cfg.Sweeper.Schedule,
		cron:         cron.New(cron.WithSeconds()),
		logger:       logger,
	}
}

// Start schedules the sweep
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Sweep(context.Background()); err != nil {
			s.logger.Warn().Err(err).Msg("Stuck-job sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.schedule).
		Dur("stage_timeout", s.stageTimeout).
		Msg("Stuck-job sweeper started")
	return nil
}

// Stop halts the schedule
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep fails every non-terminal job whose last update is older than the
// stage timeout, and marks its document failed alongside.
func (s *Sweeper) Sweep(ctx context.Context) error {
	active, err := s.jobStore.ListJobsByStatus(ctx,
		models.JobStatusPending,
		models.JobStatusResearching,
		models.JobStatusWriting,
		models.JobStatusRendering,
	)
	if err != nil {
		return fmt.Errorf("listing active jobs: %w", err)
	}

	cutoff := time.Now().Add(-s.stageTimeout)
	swept := 0
	for _, job := range active {
		if job.UpdatedAt.After(cutoff) {
			continue
		}

		job.MarkFailed(fmt.Sprintf("no progress for %s in step %s", s.stageTimeout, job.CurrentStep), "timeout")
		if err := s.jobStore.SaveJob(ctx, job); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist swept job")
			continue
		}

		if doc, err := s.docStore.GetDocument(ctx, job.DocumentID); err == nil {
			doc.MarkFailed()
			if err := s.docStore.SaveDocument(ctx, doc); err != nil {
				s.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to persist swept document")
			}
		}

		swept++
		s.logger.Warn().
			Str("job_id", job.ID).
			Str("step", job.CurrentStep).
			Str("last_update", job.UpdatedAt.Format(time.RFC3339)).
			Msg("Stuck job failed by sweeper")
	}

	if swept > 0 {
		s.logger.Info().Int("swept", swept).Msg("Stuck-job sweep completed")
	}
	return nil
}
