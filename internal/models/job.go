// -----------------------------------------------------------------------
// Generation Job - durable record of one pipeline attempt for a document
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"

	"github.com/ternarybob/scribo/internal/common"
)

// JobStatus represents the job state machine states
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusResearching JobStatus = "researching"
	JobStatusWriting     JobStatus = "writing"
	JobStatusRendering   JobStatus = "rendering"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCanceled    JobStatus = "canceled"
)

// Pipeline step names. Steps are a finer-grained label within a status.
const (
	StepTopicAnalysis        = "topic_analysis"
	StepKeywordResearch      = "keyword_research"
	StepWebResearch          = "web_research"
	StepIndustryAnalysis     = "industry_analysis"
	StepOutlineGeneration    = "outline_generation"
	StepContentWriting       = "content_writing"
	StepStatisticsExtraction = "statistics_extraction"
	StepChartGeneration      = "chart_generation"
	StepPDFRendering         = "pdf_rendering"
	StepCompleted            = "completed"
)

// Checkpoint pairs a pipeline step with its job status and fixed progress value
type Checkpoint struct {
	Step    string
	Status  JobStatus
	Percent int
}

// Checkpoints is the documented stage order. Progress committed in this order
// is strictly increasing within one attempt.
var Checkpoints = []Checkpoint{
	{StepTopicAnalysis, JobStatusResearching, 5},
	{StepKeywordResearch, JobStatusResearching, 10},
	{StepWebResearch, JobStatusResearching, 25},
	{StepIndustryAnalysis, JobStatusResearching, 35},
	{StepOutlineGeneration, JobStatusResearching, 45},
	{StepContentWriting, JobStatusWriting, 70},
	{StepStatisticsExtraction, JobStatusWriting, 80},
	{StepChartGeneration, JobStatusRendering, 90},
	{StepPDFRendering, JobStatusRendering, 95},
	{StepCompleted, JobStatusCompleted, 100},
}

// CheckpointFor returns the checkpoint for a step name
func CheckpointFor(step string) (Checkpoint, bool) {
	for _, cp := range Checkpoints {
		if cp.Step == step {
			return cp, true
		}
	}
	return Checkpoint{}, false
}

// StepResult is one entry in the job's append-only stage-result log
type StepResult struct {
	Name        string                 `json:"name"`
	Status      string                 `json:"status"`
	Summary     map[string]interface{} `json:"summary,omitempty"`
	CompletedAt time.Time              `json:"completed_at"`
}

// ErrRetryExhausted is returned when a job has reached its retry cap
var ErrRetryExhausted = fmt.Errorf("maximum retries reached")

// ErrTerminalJob is returned when a transition is attempted on a terminal job
var ErrTerminalJob = fmt.Errorf("job is in a terminal state")

// GenerationJob tracks one content generation attempt for a document.
// Exactly one non-terminal job exists per document at a time; the jobs
// manager enforces that invariant at creation.
type GenerationJob struct {
	ID         string `badgerhold:"key" json:"id"`
	DocumentID string `badgerholdIndex:"DocumentID" json:"document_id"`

	Status          JobStatus `badgerholdIndex:"Status" json:"status"`
	CurrentStep     string    `json:"current_step,omitempty"`
	ProgressPercent int       `json:"progress_percent"`

	// Steps is an append-only ordered log of stage results. Entries are
	// never removed; read through StepResults/StepResult.
	Steps []StepResult `json:"steps,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	RetryCount   int    `json:"retry_count"`

	// Resource usage accumulated across LLM calls
	TokensUsed int     `json:"tokens_used"`
	APICost    float64 `json:"api_cost"`

	// TaskID is the external task-queue handle, used for cancellation
	TaskID string `json:"task_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewGenerationJob creates a pending job for a document
func NewGenerationJob(documentID string) *GenerationJob {
	now := time.Now()
	return &GenerationJob{
		ID:         common.NewJobID(),
		DocumentID: documentID,
		Status:     JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsTerminal returns true if the job is in a terminal state
func (j *GenerationJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted ||
		j.Status == JobStatusFailed ||
		j.Status == JobStatusCanceled
}

// MarkStarted transitions pending -> researching and sets started_at
func (j *GenerationJob) MarkStarted() {
	now := time.Now()
	j.Status = JobStatusResearching
	j.CurrentStep = StepTopicAnalysis
	j.ProgressPercent = 5
	j.StartedAt = &now
	j.UpdatedAt = now
}

// AdvanceStep records a completed stage and moves to its checkpoint.
// Progress is monotonic within an attempt; a regression is rejected.
func (j *GenerationJob) AdvanceStep(step string, summary map[string]interface{}) error {
	if j.IsTerminal() {
		return ErrTerminalJob
	}
	cp, ok := CheckpointFor(step)
	if !ok {
		return fmt.Errorf("unknown pipeline step: %s", step)
	}
	if cp.Percent < j.ProgressPercent {
		return fmt.Errorf("progress regression: %s (%d%%) after %d%%", step, cp.Percent, j.ProgressPercent)
	}

	now := time.Now()
	j.Steps = append(j.Steps, StepResult{
		Name:        step,
		Status:      "completed",
		Summary:     summary,
		CompletedAt: now,
	})
	j.Status = cp.Status
	j.CurrentStep = step
	j.ProgressPercent = cp.Percent
	j.UpdatedAt = now
	return nil
}

// MarkCompleted transitions to the terminal completed state
func (j *GenerationJob) MarkCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CurrentStep = StepCompleted
	j.ProgressPercent = 100
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkFailed transitions to the terminal failed state
func (j *GenerationJob) MarkFailed(message, code string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = message
	j.ErrorCode = code
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkCanceled transitions to the terminal canceled state.
// Canceling a terminal job is rejected.
func (j *GenerationJob) MarkCanceled() error {
	if j.IsTerminal() {
		return ErrTerminalJob
	}
	now := time.Now()
	j.Status = JobStatusCanceled
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// ResetForRetry resets a failed job for a fresh full-pipeline run.
// Allowed only from failed, bounded by maxRetries. The step log is kept;
// a new attempt appends to it.
func (j *GenerationJob) ResetForRetry(maxRetries int) error {
	if j.Status != JobStatusFailed {
		return fmt.Errorf("retry allowed only for failed jobs, job is %s", j.Status)
	}
	if j.RetryCount >= maxRetries {
		return ErrRetryExhausted
	}
	j.Status = JobStatusPending
	j.CurrentStep = ""
	j.ProgressPercent = 0
	j.ErrorMessage = ""
	j.ErrorCode = ""
	j.RetryCount++
	j.StartedAt = nil
	j.CompletedAt = nil
	j.TaskID = ""
	j.UpdatedAt = time.Now()
	return nil
}

// AddUsage accumulates resource counters from an LLM call
func (j *GenerationJob) AddUsage(tokens int, cost float64) {
	j.TokensUsed += tokens
	j.APICost += cost
}

// StepResults returns a copy of the ordered stage-result log
func (j *GenerationJob) StepResults() []StepResult {
	out := make([]StepResult, len(j.Steps))
	copy(out, j.Steps)
	return out
}

// StepResult returns the most recent result for a stage name
func (j *GenerationJob) StepResult(name string) (StepResult, bool) {
	for i := len(j.Steps) - 1; i >= 0; i-- {
		if j.Steps[i].Name == name {
			return j.Steps[i], true
		}
	}
	return StepResult{}, false
}
