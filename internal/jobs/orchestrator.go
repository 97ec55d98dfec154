// -----------------------------------------------------------------------
// Pipeline Orchestrator - runs the generation stages for one job
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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
)

// errJobHalted signals that the job reached a terminal state outside this
// run (a cancel or a sweeper timeout); the pipeline stops without treating
// it as a failure of its own.
var errJobHalted = errors.New("job halted externally")

// Orchestrator executes the full pipeline for one job: research, outline,
// writing, statistics, charts, rendering. Progress is persisted at each
// checkpoint; any stage error crosses a single failure boundary that marks
// both job and document failed without writing partial content.
type Orchestrator struct {
	research *research.Service
	outline  *outline.Service
	writer   *writer.Service
	stats    *stats.Service
	charts   *charts.Service
	render   *render.Service

	jobStore interfaces.JobStorage
	docStore interfaces.DocumentStorage
	files    interfaces.FileStorage

	config *common.Config
	logger arbor.ILogger
}

// NewOrchestrator wires the pipeline stages
func NewOrchestrator(
	researchSvc *research.Service,
	outlineSvc *outline.Service,
	writerSvc *writer.Service,
	statsSvc *stats.Service,
	chartsSvc *charts.Service,
	renderSvc *render.Service,
	jobStore interfaces.JobStorage,
	docStore interfaces.DocumentStorage,
	files interfaces.FileStorage,
	config *common.Config,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		research: researchSvc,
		outline:  outlineSvc,
		writer:   writerSvc,
		stats:    statsSvc,
		charts:   chartsSvc,
		render:   renderSvc,
		jobStore: jobStore,
		docStore: docStore,
		files:    files,
		config:   config,
		logger:   logger,
	}
}

// Run executes the pipeline for a job. Terminal jobs are skipped so a
// redelivered task after a crash or cancel is a no-op.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", jobID, err)
	}

	// Job-specific logger for consistent per-job log scoping
	jobLogger := o.logger.WithCorrelationId(job.ID)

	if job.IsTerminal() {
		jobLogger.Info().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Msg("Job already terminal, skipping redelivered task")
		return nil
	}

	// A redelivered task for a job that is past pending but still making
	// progress belongs to a worker that is alive; rerunning it here would
	// regress the attempt's progress. Only a stale job, one with no update
	// for a full stage timeout, is treated as crash recovery.
	if job.Status != models.JobStatusPending {
		if time.Since(job.UpdatedAt) < o.config.Generation.StageTimeoutDuration() {
			jobLogger.Info().
				Str("job_id", jobID).
				Str("status", string(job.Status)).
				Int("progress", job.ProgressPercent).
				Msg("Job still in flight elsewhere, skipping redelivered task")
			return nil
		}
		jobLogger.Warn().
			Str("job_id", jobID).
			Str("step", job.CurrentStep).
			Str("last_update", job.UpdatedAt.Format(time.RFC3339)).
			Msg("Stale in-flight job, restarting attempt")
	}

	doc, err := o.docStore.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", job.DocumentID, err)
	}

	if err := o.run(ctx, job, doc, jobLogger); err != nil {
		if errors.Is(err, errJobHalted) {
			jobLogger.Info().Str("job_id", jobID).Msg("Pipeline stopped, job was halted externally")
			return nil
		}
		o.fail(ctx, job, doc, err, jobLogger)
		return err
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, job *models.GenerationJob, doc *models.Document, logger arbor.ILogger) error {
	job.MarkStarted()
	if err := o.jobStore.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("persisting job start: %w", err)
	}
	doc.MarkGenerating()
	if err := o.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("persisting document status: %w", err)
	}

	opts := doc.Options
	depth := models.ResearchDepth(opts.ResearchDepth)
	if opts.ResearchDepth == "" {
		depth = models.ResearchDepth(o.config.Generation.ResearchDepth)
	}

	keywords := expandKeywords(doc.Topic, opts.Keywords)
	if err := o.advance(ctx, job, models.StepKeywordResearch, map[string]interface{}{
		"keywords": keywords,
	}, logger); err != nil {
		return err
	}

	bundle, usage, err := o.research.ResearchTopic(ctx, doc.Topic, keywords, depth)
	if err != nil {
		return stageError(models.StepWebResearch, err)
	}
	job.AddUsage(usage.Tokens, usage.Cost)
	if err := o.advance(ctx, job, models.StepWebResearch, map[string]interface{}{
		"key_findings": len(bundle.KeyFindings),
		"statistics":   len(bundle.Statistics),
	}, logger); err != nil {
		return err
	}

	if opts.Industry != "" {
		analysis, usage, err := o.research.AnalyzeIndustry(ctx, opts.Industry, doc.Topic)
		if err != nil {
			return stageError(models.StepIndustryAnalysis, err)
		}
		job.AddUsage(usage.Tokens, usage.Cost)
		bundle.IndustryAnalysis = analysis
	}
	if err := o.advance(ctx, job, models.StepIndustryAnalysis, map[string]interface{}{
		"industry": opts.Industry,
	}, logger); err != nil {
		return err
	}

	plan, usage, err := o.outline.GenerateOutline(ctx, doc.Title, doc.Topic, bundle, opts)
	if err != nil {
		return stageError(models.StepOutlineGeneration, err)
	}
	job.AddUsage(usage.Tokens, usage.Cost)
	if err := o.advance(ctx, job, models.StepOutlineGeneration, map[string]interface{}{
		"sections":    len(plan.Sections),
		"word_target": plan.TotalWordTarget(),
	}, logger); err != nil {
		return err
	}

	content, usage, err := o.writer.GenerateFullDocument(ctx, plan, bundle, opts)
	job.AddUsage(usage.Tokens, usage.Cost)
	if err != nil {
		return stageError(models.StepContentWriting, err)
	}
	if err := o.advance(ctx, job, models.StepContentWriting, map[string]interface{}{
		"sections": len(content.Sections),
		"words":    content.WordCount(),
	}, logger); err != nil {
		return err
	}

	statistics, usage, err := o.stats.ExtractStatistics(ctx, compileProse(content), bundle.Statistics)
	if err != nil {
		return stageError(models.StepStatisticsExtraction, err)
	}
	job.AddUsage(usage.Tokens, usage.Cost)
	content.Statistics = statistics
	if err := o.advance(ctx, job, models.StepStatisticsExtraction, map[string]interface{}{
		"statistics": len(statistics),
	}, logger); err != nil {
		return err
	}

	suggestions := stats.SuggestVisualizations(statistics)
	content.Charts = o.charts.RenderSuggestions(suggestions)
	if err := o.advance(ctx, job, models.StepChartGeneration, map[string]interface{}{
		"suggestions": len(suggestions),
		"charts":      len(content.Charts),
	}, logger); err != nil {
		return err
	}

	pdfBytes, pageCount, err := o.render.RenderPDF(content, opts.TemplateID, doc.Branding)
	if err != nil {
		return stageError(models.StepPDFRendering, err)
	}
	locator, err := o.files.Save(ctx, pdfBytes, o.config.Render.PDFFolder, doc.Slug+".pdf")
	if err != nil {
		return stageError(models.StepPDFRendering, err)
	}
	if err := o.advance(ctx, job, models.StepPDFRendering, map[string]interface{}{
		"pages":   pageCount,
		"locator": locator,
	}, logger); err != nil {
		return err
	}

	// Terminal update: document content, locator and derived metrics land
	// together with the job's completion.
	doc.MarkReady(content, locator, pageCount, len(bundle.RecommendedSources))
	if err := o.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("persisting completed document: %w", err)
	}
	job.MarkCompleted()
	if err := o.jobStore.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("persisting completed job: %w", err)
	}

	logger.Info().
		Str("job_id", job.ID).
		Str("document_id", doc.ID).
		Int("pages", pageCount).
		Int("tokens", job.TokensUsed).
		Msg("Generation pipeline completed")
	return nil
}

// advance commits a checkpoint. The job is re-read first so an external
// cancel between stages halts the pipeline instead of being overwritten.
func (o *Orchestrator) advance(ctx context.Context, job *models.GenerationJob, step string, summary map[string]interface{}, logger arbor.ILogger) error {
	fresh, err := o.jobStore.GetJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("reloading job at %s: %w", step, err)
	}
	if fresh.IsTerminal() {
		return errJobHalted
	}

	if err := job.AdvanceStep(step, summary); err != nil {
		return fmt.Errorf("advancing to %s: %w", step, err)
	}
	if err := o.jobStore.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("persisting progress at %s: %w", step, err)
	}

	logger.Debug().
		Str("job_id", job.ID).
		Str("step", step).
		Int("progress", job.ProgressPercent).
		Msg("Pipeline checkpoint")
	return nil
}

// fail is the single failure boundary: job and document become failed and
// no partial content is attached to the document.
func (o *Orchestrator) fail(ctx context.Context, job *models.GenerationJob, doc *models.Document, cause error, logger arbor.ILogger) {
	code := errorCode(cause)
	job.MarkFailed(cause.Error(), code)
	if err := o.jobStore.SaveJob(ctx, job); err != nil {
		logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist job failure")
	}

	doc.MarkFailed()
	if err := o.docStore.SaveDocument(ctx, doc); err != nil {
		logger.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to persist document failure")
	}

	logger.Warn().
		Str("job_id", job.ID).
		Str("error_code", code).
		Str("error", cause.Error()).
		Msg("Generation pipeline failed")
}

// stageErr tags a stage failure with the step it happened in
type stageErr struct {
	step string
	err  error
}

func (e *stageErr) Error() string { return fmt.Sprintf("%s: %v", e.step, e.err) }
func (e *stageErr) Unwrap() error { return e.err }

func stageError(step string, err error) error {
	return &stageErr{step: step, err: err}
}

func errorCode(err error) string {
	var se *stageErr
	if errors.As(err, &se) {
		return se.step
	}
	return "internal"
}

// expandKeywords merges caller keywords with tokens from the topic itself
func expandKeywords(topic string, keywords []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, w := range strings.Fields(strings.ToLower(topic)) {
		if len(w) > 3 && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// compileProse flattens the written content for statistics extraction
func compileProse(content *models.DocumentContent) string {
	var b strings.Builder
	b.WriteString(content.ExecutiveSummary)
	for _, s := range content.Sections {
		b.WriteString("\n\n")
		b.WriteString(s.Content)
		for _, sub := range s.Subsections {
			b.WriteString("\n\n")
			b.WriteString(sub.Content)
		}
	}
	b.WriteString("\n\n")
	b.WriteString(content.Conclusion.Content)
	return b.String()
}
