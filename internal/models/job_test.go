package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationJob_Lifecycle(t *testing.T) {
	job := NewGenerationJob("doc_1")
	assert.Equal(t, JobStatusPending, job.Status)
	assert.True(t, strings.HasPrefix(job.ID, "job_"))
	assert.False(t, job.IsTerminal())
	assert.Nil(t, job.StartedAt)

	job.MarkStarted()
	assert.Equal(t, JobStatusResearching, job.Status)
	assert.Equal(t, StepTopicAnalysis, job.CurrentStep)
	assert.Equal(t, 5, job.ProgressPercent)
	require.NotNil(t, job.StartedAt)

	require.NoError(t, job.AdvanceStep(StepWebResearch, nil))
	assert.Equal(t, JobStatusResearching, job.Status)
	assert.Equal(t, 25, job.ProgressPercent)

	require.NoError(t, job.AdvanceStep(StepContentWriting, nil))
	assert.Equal(t, JobStatusWriting, job.Status)

	require.NoError(t, job.AdvanceStep(StepPDFRendering, nil))
	assert.Equal(t, JobStatusRendering, job.Status)

	job.MarkCompleted()
	assert.True(t, job.IsTerminal())
	assert.Equal(t, 100, job.ProgressPercent)
	require.NotNil(t, job.CompletedAt)
}

func TestGenerationJob_AdvanceStepRejectsRegression(t *testing.T) {
	job := NewGenerationJob("doc_1")
	job.MarkStarted()
	require.NoError(t, job.AdvanceStep(StepContentWriting, nil))

	err := job.AdvanceStep(StepWebResearch, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "progress regression")
	assert.Equal(t, 70, job.ProgressPercent)
}

func TestGenerationJob_AdvanceStepRejectsUnknownStep(t *testing.T) {
	job := NewGenerationJob("doc_1")
	job.MarkStarted()

	err := job.AdvanceStep("publishing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pipeline step")
}

func TestGenerationJob_AdvanceStepRejectsTerminal(t *testing.T) {
	job := NewGenerationJob("doc_1")
	job.MarkFailed("provider down", "internal")

	assert.ErrorIs(t, job.AdvanceStep(StepWebResearch, nil), ErrTerminalJob)
}

func TestGenerationJob_StepLogIsAppendOnly(t *testing.T) {
	job := NewGenerationJob("doc_1")
	job.MarkStarted()
	require.NoError(t, job.AdvanceStep(StepKeywordResearch, map[string]interface{}{"keywords": 4}))
	require.NoError(t, job.AdvanceStep(StepWebResearch, nil))

	steps := job.StepResults()
	require.Len(t, steps, 2)
	assert.Equal(t, StepKeywordResearch, steps[0].Name)
	assert.Equal(t, StepWebResearch, steps[1].Name)

	// Mutating the returned slice must not touch the job's log
	steps[0].Name = "tampered"
	got, ok := job.StepResult(StepKeywordResearch)
	require.True(t, ok)
	assert.Equal(t, StepKeywordResearch, got.Name)
}

func TestGenerationJob_CancelOnlyFromNonTerminal(t *testing.T) {
	job := NewGenerationJob("doc_1")
	require.NoError(t, job.MarkCanceled())
	assert.Equal(t, JobStatusCanceled, job.Status)

	assert.ErrorIs(t, job.MarkCanceled(), ErrTerminalJob)

	completed := NewGenerationJob("doc_2")
	completed.MarkCompleted()
	assert.ErrorIs(t, completed.MarkCanceled(), ErrTerminalJob)
}

func TestGenerationJob_ResetForRetry(t *testing.T) {
	job := NewGenerationJob("doc_1")
	job.MarkStarted()
	require.NoError(t, job.AdvanceStep(StepWebResearch, nil))
	job.MarkFailed("provider down", "web_research")
	job.TaskID = "task_1"

	require.NoError(t, job.ResetForRetry(3))
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 0, job.ProgressPercent)
	assert.Empty(t, job.ErrorMessage)
	assert.Empty(t, job.ErrorCode)
	assert.Empty(t, job.TaskID)
	assert.Nil(t, job.StartedAt)
	assert.Equal(t, 1, job.RetryCount)

	// Prior attempt's step log is kept for diagnostics
	assert.Len(t, job.StepResults(), 1)
}

func TestGenerationJob_ResetForRetryOnlyFromFailed(t *testing.T) {
	job := NewGenerationJob("doc_1")

	err := job.ResetForRetry(3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry allowed only for failed jobs")
}

func TestGenerationJob_ResetForRetryBounded(t *testing.T) {
	job := NewGenerationJob("doc_1")
	job.RetryCount = 3
	job.MarkFailed("provider down", "internal")

	assert.ErrorIs(t, job.ResetForRetry(3), ErrRetryExhausted)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 3, job.RetryCount)
}

func TestGenerationJob_AddUsage(t *testing.T) {
	job := NewGenerationJob("doc_1")
	job.AddUsage(1200, 0.012)
	job.AddUsage(800, 0.008)
	assert.Equal(t, 2000, job.TokensUsed)
	assert.InDelta(t, 0.02, job.APICost, 1e-9)
}

func TestCheckpoints_StrictlyIncreasing(t *testing.T) {
	last := 0
	for _, cp := range Checkpoints {
		assert.Greater(t, cp.Percent, last, "checkpoint %s", cp.Step)
		last = cp.Percent
	}
	assert.Equal(t, 100, last)
}
