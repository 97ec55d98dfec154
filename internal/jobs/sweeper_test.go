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

func newTestSweeper(env *pipelineEnv) *Sweeper {
	return NewSweeper(env.jobStore, env.docStore, env.config, arbor.NewLogger())
}

func TestSweeper_FailsStuckJob(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{})
	ctx := context.Background()
	doc := seedDocument(t, env)

	job := models.NewGenerationJob(doc.ID)
	job.MarkStarted()
	job.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, env.jobStore.SaveJob(ctx, job))

	require.NoError(t, newTestSweeper(env).Sweep(ctx))

	got, err := env.jobStore.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "timeout", got.ErrorCode)
	assert.Contains(t, got.ErrorMessage, models.StepTopicAnalysis)

	gotDoc, err := env.docStore.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusFailed, gotDoc.Status)
}

func TestSweeper_LeavesFreshJobAlone(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{})
	ctx := context.Background()
	doc := seedDocument(t, env)

	job := models.NewGenerationJob(doc.ID)
	job.MarkStarted()
	require.NoError(t, env.jobStore.SaveJob(ctx, job))

	require.NoError(t, newTestSweeper(env).Sweep(ctx))

	got, err := env.jobStore.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusResearching, got.Status)
}

func TestSweeper_SweptJobIsRetryable(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{})
	ctx := context.Background()
	doc := seedDocument(t, env)

	job := models.NewGenerationJob(doc.ID)
	job.MarkStarted()
	job.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, env.jobStore.SaveJob(ctx, job))

	require.NoError(t, newTestSweeper(env).Sweep(ctx))

	retried, err := env.manager.Retry(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, retried.Status)
	assert.Equal(t, 1, retried.RetryCount)
}

func TestSweeper_IgnoresTerminalJobs(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{})
	ctx := context.Background()
	doc := seedDocument(t, env)

	job := models.NewGenerationJob(doc.ID)
	require.NoError(t, job.MarkCanceled())
	job.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, env.jobStore.SaveJob(ctx, job))

	require.NoError(t, newTestSweeper(env).Sweep(ctx))

	got, err := env.jobStore.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCanceled, got.Status)
	assert.NotEqual(t, "timeout", got.ErrorCode)
}
