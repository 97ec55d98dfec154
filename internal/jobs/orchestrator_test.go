package jobs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/charts"
	"github.com/ternarybob/scribo/internal/services/outline"
	"github.com/ternarybob/scribo/internal/services/render"
	"github.com/ternarybob/scribo/internal/services/research"
	"github.com/ternarybob/scribo/internal/services/stats"
	"github.com/ternarybob/scribo/internal/services/writer"
	storage "github.com/ternarybob/scribo/internal/storage/badger"
	"github.com/ternarybob/scribo/internal/storage/files"
)

// scriptedCompleter answers each pipeline stage by recognizing its prompt
type scriptedCompleter struct {
	failStage string
}

const (
	researchJSON = `{
  "key_findings": ["Remote work adoption accelerated after 2020"],
  "statistics": [{"value": "73%", "context": "of companies allow hybrid work", "source": "Gartner"}],
  "trends": ["Hybrid-first policies"],
  "challenges": ["Culture erosion"],
  "opportunities": ["Global talent pools"],
  "expert_perspectives": ["Flexibility is table stakes"],
  "recommended_sources": ["Gartner 2026 Workplace Survey", "McKinsey remote work report"]
}`

	industryJSON = `{"industry": "Technology", "overview": "Fast-moving", "outlook": "Strong"}`

	outlineJSON = `{
  "title": "Future of Remote Work",
  "subtitle": "A field guide",
  "executive_summary": {"key_points": ["Hybrid is the default"], "word_count": 200},
  "sections": [
    {"title": "State of Play", "purpose": "Where things stand", "word_count": 300},
    {"title": "What Comes Next", "purpose": "Forward outlook", "word_count": 300}
  ],
  "conclusion": {"key_points": ["Act now"], "call_to_action": "Talk to us", "word_count": 150}
}`

	statsJSON = `{"statistics": [
  {"value": "73%", "context": "of companies allow hybrid work", "source": "Gartner", "category": "adoption", "highlight_worthy": true, "visualization_type": "percentage"},
  {"value": "45%", "context": "fully remote", "category": "adoption"},
  {"value": "12%", "context": "office only", "category": "adoption"}
]}`
)

func (c *scriptedCompleter) respond(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "research analyst"):
		if c.failStage == "research" {
			return "", errors.New("research provider down")
		}
		return researchJSON, nil
	case strings.Contains(prompt, "industry analyst"):
		return industryJSON, nil
	case strings.Contains(prompt, "editorial director"):
		return outlineJSON, nil
	case strings.Contains(prompt, "senior writer"), strings.Contains(prompt, "call-to-action"):
		if c.failStage == "writing" {
			return "", errors.New("writing provider down")
		}
		return "Remote work is now the norm for knowledge work. Teams that embraced it report higher retention.", nil
	case strings.Contains(prompt, "data editor"):
		return statsJSON, nil
	default:
		return "{}", nil
	}
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string, _ int) (string, interfaces.Usage, error) {
	text, err := c.respond(prompt)
	if err != nil {
		return "", interfaces.Usage{}, err
	}
	return text, interfaces.Usage{Tokens: 100, Cost: 0.001}, nil
}

func (c *scriptedCompleter) CompleteWithModel(ctx context.Context, _, prompt string, maxTokens int) (string, interfaces.Usage, error) {
	return c.Complete(ctx, prompt, maxTokens)
}

func (c *scriptedCompleter) WritingModel() string { return "scripted-writing-model" }

type pipelineEnv struct {
	orchestrator *Orchestrator
	manager      *Manager
	queue        *Queue
	jobStore     interfaces.JobStorage
	docStore     interfaces.DocumentStorage
	files        interfaces.FileStorage
	config       *common.Config
}

func newPipelineEnv(t *testing.T, completer interfaces.Completer) *pipelineEnv {
	t.Helper()
	logger := arbor.NewLogger()
	db := openTestDB(t)

	cfg := common.NewDefaultConfig()
	cfg.Storage.Files.Root = t.TempDir()

	jobStore := storage.NewJobStorage(db, logger)
	docStore := storage.NewDocumentStorage(db, logger)
	fileStore, err := files.NewStorage(cfg.Storage.Files.Root, logger)
	require.NoError(t, err)

	queue := NewQueue(db.Store().Badger(), &cfg.Queue, logger)

	orch := NewOrchestrator(
		research.NewService(completer, logger),
		outline.NewService(completer, logger),
		writer.NewService(completer, logger),
		stats.NewService(completer, logger),
		charts.NewService(logger),
		render.NewService(render.NewRegistry("", logger), logger),
		jobStore, docStore, fileStore, cfg, logger,
	)

	return &pipelineEnv{
		orchestrator: orch,
		manager:      NewManager(jobStore, docStore, queue, cfg, logger),
		queue:        queue,
		jobStore:     jobStore,
		docStore:     docStore,
		files:        fileStore,
		config:       cfg,
	}
}

func seedDocument(t *testing.T, env *pipelineEnv) *models.Document {
	t.Helper()
	doc := models.NewDocument("agency_1", "client_1", "Future of Remote Work", models.GenerationOptions{
		Tone:          "professional",
		Keywords:      []string{"remote", "hybrid"},
		Industry:      "Technology",
		ResearchDepth: "standard",
		TargetPages:   8,
	})
	require.NoError(t, env.docStore.SaveDocument(context.Background(), doc))
	return doc
}

func TestOrchestrator_FullPipeline(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{})
	ctx := context.Background()
	doc := seedDocument(t, env)

	job := models.NewGenerationJob(doc.ID)
	require.NoError(t, env.jobStore.SaveJob(ctx, job))

	require.NoError(t, env.orchestrator.Run(ctx, job.ID))

	got, err := env.jobStore.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.ProgressPercent)
	assert.Greater(t, got.TokensUsed, 0)
	assert.Greater(t, got.APICost, 0.0)
	assert.NotNil(t, got.CompletedAt)

	gotDoc, err := env.docStore.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusReady, gotDoc.Status)
	require.NotNil(t, gotDoc.Content)
	assert.Len(t, gotDoc.Content.Sections, 2)
	assert.Greater(t, gotDoc.WordCount, 0)
	assert.Greater(t, gotDoc.PageCount, 0)
	assert.Equal(t, 2, gotDoc.SourcesCount)
	assert.NotEmpty(t, gotDoc.PDFLocator)

	pdf, err := env.files.Get(ctx, gotDoc.PDFLocator)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestOrchestrator_ProgressIsMonotonic(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{})
	ctx := context.Background()
	doc := seedDocument(t, env)

	job := models.NewGenerationJob(doc.ID)
	require.NoError(t, env.jobStore.SaveJob(ctx, job))
	require.NoError(t, env.orchestrator.Run(ctx, job.ID))

	got, err := env.jobStore.GetJob(ctx, job.ID)
	require.NoError(t, err)

	steps := got.StepResults()
	require.NotEmpty(t, steps)
	last := 0
	for _, step := range steps {
		cp, ok := models.CheckpointFor(step.Name)
		require.True(t, ok, "unknown step %s in log", step.Name)
		assert.Greater(t, cp.Percent, last, "progress must strictly increase")
		last = cp.Percent
	}
}

func TestOrchestrator_StageFailureMarksJobAndDocument(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{failStage: "writing"})
	ctx := context.Background()
	doc := seedDocument(t, env)

	job := models.NewGenerationJob(doc.ID)
	require.NoError(t, env.jobStore.SaveJob(ctx, job))

	err := env.orchestrator.Run(ctx, job.ID)
	require.Error(t, err)

	got, err := env.jobStore.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, models.StepContentWriting, got.ErrorCode)
	assert.NotEmpty(t, got.ErrorMessage)

	gotDoc, err := env.docStore.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusFailed, gotDoc.Status)
	assert.Nil(t, gotDoc.Content)
}

func TestOrchestrator_SkipsTerminalJob(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{})
	ctx := context.Background()
	doc := seedDocument(t, env)

	job := models.NewGenerationJob(doc.ID)
	require.NoError(t, job.MarkCanceled())
	require.NoError(t, env.jobStore.SaveJob(ctx, job))

	require.NoError(t, env.orchestrator.Run(ctx, job.ID))

	got, err := env.jobStore.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCanceled, got.Status)
	assert.Empty(t, got.StepResults())
}

func TestOrchestrator_SkipsInFlightJob(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{})
	ctx := context.Background()
	doc := seedDocument(t, env)

	// A job mid-pipeline on another worker: non-terminal, recently updated
	job := models.NewGenerationJob(doc.ID)
	job.MarkStarted()
	require.NoError(t, job.AdvanceStep(models.StepContentWriting, nil))
	require.NoError(t, env.jobStore.SaveJob(ctx, job))

	require.NoError(t, env.orchestrator.Run(ctx, job.ID))

	got, err := env.jobStore.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusWriting, got.Status)
	assert.Equal(t, 70, got.ProgressPercent, "redelivery must not regress progress")
	assert.Len(t, got.StepResults(), 1, "redelivery must not append duplicate stage entries")
}

func TestOrchestrator_RestartsStaleInFlightJob(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{})
	ctx := context.Background()
	doc := seedDocument(t, env)

	// Same mid-pipeline shape but the worker died long ago
	job := models.NewGenerationJob(doc.ID)
	job.MarkStarted()
	require.NoError(t, job.AdvanceStep(models.StepContentWriting, nil))
	job.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, env.jobStore.SaveJob(ctx, job))

	require.NoError(t, env.orchestrator.Run(ctx, job.ID))

	got, err := env.jobStore.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.ProgressPercent)
}

func TestOrchestrator_ResearchFailureCodesStage(t *testing.T) {
	env := newPipelineEnv(t, &scriptedCompleter{failStage: "research"})
	ctx := context.Background()
	doc := seedDocument(t, env)

	job := models.NewGenerationJob(doc.ID)
	require.NoError(t, env.jobStore.SaveJob(ctx, job))

	err := env.orchestrator.Run(ctx, job.ID)
	require.Error(t, err)

	got, err := env.jobStore.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, models.StepWebResearch, got.ErrorCode)
}
