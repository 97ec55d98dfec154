package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/models"
)

func TestWorkerPool_ProcessesQueuedJob(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{})
	ctx := context.Background()
	doc := seedDocument(t, env)

	job, err := env.manager.CreateJob(ctx, doc.ID)
	require.NoError(t, err)

	env.config.Queue.PollInterval = "50ms"
	pool := NewWorkerPool(env.queue, env.orchestrator, &env.config.Queue, arbor.NewLogger())
	pool.Start()
	defer pool.Stop()

	assert.Eventually(t, func() bool {
		got, err := env.jobStore.GetJob(ctx, job.ID)
		return err == nil && got.Status == models.JobStatusCompleted
	}, 30*time.Second, 100*time.Millisecond, "job should complete through the worker pool")

	// The finished task was consumed, not left for redelivery
	_, _, err = env.queue.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoTask)
}

func TestWorkerPool_FailedPipelineConsumesTask(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{failStage: "writing"})
	ctx := context.Background()
	doc := seedDocument(t, env)

	job, err := env.manager.CreateJob(ctx, doc.ID)
	require.NoError(t, err)

	env.config.Queue.PollInterval = "50ms"
	pool := NewWorkerPool(env.queue, env.orchestrator, &env.config.Queue, arbor.NewLogger())
	pool.Start()
	defer pool.Stop()

	assert.Eventually(t, func() bool {
		got, err := env.jobStore.GetJob(ctx, job.ID)
		return err == nil && got.Status == models.JobStatusFailed
	}, 30*time.Second, 100*time.Millisecond, "job should fail through the worker pool")

	_, _, err = env.queue.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoTask)
}
