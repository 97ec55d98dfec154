package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
)

// WorkerPool polls the task queue and runs the pipeline for claimed tasks.
// Concurrency is deliberately small: each task holds an entire LLM-bound
// pipeline for minutes.
type WorkerPool struct {
	queue        *Queue
	orchestrator *Orchestrator
	pollInterval time.Duration
	concurrency  int
	logger       arbor.ILogger
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorkerPool creates a worker pool over the task queue
func NewWorkerPool(queue *Queue, orchestrator *Orchestrator, cfg *common.QueueConfig, logger arbor.ILogger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queue:        queue,
		orchestrator: orchestrator,
		pollInterval: cfg.PollIntervalDuration(),
		concurrency:  cfg.Concurrency,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the worker goroutines
func (wp *WorkerPool) Start() {
	wp.logger.Info().
		Int("concurrency", wp.concurrency).
		Dur("poll_interval", wp.pollInterval).
		Msg("Starting worker pool")

	for i := 0; i < wp.concurrency; i++ {
		go wp.worker(i)
	}
}

// Stop signals all workers to exit after their current task
func (wp *WorkerPool) Stop() {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
}

func (wp *WorkerPool) worker(workerID int) {
	// Stagger worker starts to reduce database lock contention
	stagger := (wp.pollInterval / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if stagger > 0 {
		time.Sleep(stagger)
	}

	wp.logger.Debug().Int("worker_id", workerID).Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().Int("worker_id", workerID).Msg("Worker stopped")
			return
		case <-ticker.C:
			if err := wp.processTask(workerID); err != nil && !errors.Is(err, ErrNoTask) {
				wp.logger.Warn().
					Err(err).
					Int("worker_id", workerID).
					Msg("Error processing task")
			}
		}
	}
}

func (wp *WorkerPool) processTask(workerID int) error {
	task, done, err := wp.queue.Receive(wp.ctx)
	if err != nil {
		return err
	}

	wp.logger.Info().
		Str("task_id", task.ID).
		Str("job_id", task.JobID).
		Int("worker_id", workerID).
		Int("receive_count", task.ReceiveCount).
		Msg("Processing generation task")

	start := time.Now()
	runErr := wp.orchestrator.Run(wp.ctx, task.JobID)

	// The task is consumed either way. A failed pipeline already marked
	// the job failed; the retry path creates a fresh task explicitly, not
	// through queue redelivery. Redelivery exists for crashed workers only.
	if err := done(); err != nil {
		wp.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to remove finished task")
	}

	if runErr != nil {
		wp.logger.Warn().
			Err(runErr).
			Str("job_id", task.JobID).
			Dur("duration", time.Since(start)).
			Int("worker_id", workerID).
			Msg("Generation task failed")
		return nil
	}

	wp.logger.Info().
		Str("job_id", task.JobID).
		Dur("duration", time.Since(start)).
		Int("worker_id", workerID).
		Msg("Generation task finished")
	return nil
}
