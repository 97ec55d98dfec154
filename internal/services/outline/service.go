// -----------------------------------------------------------------------
// Outline Stage - document structure generation and refinement
// -----------------------------------------------------------------------

package outline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/llm"
)

const (
	maxFindingsInPrompt   = 5
	maxStatisticsInPrompt = 5
	maxTrendsInPrompt     = 3
)

// wordsPerPage converts the caller's target page count into a word budget
const wordsPerPage = 450

// Service builds and refines document outlines from research material.
type Service struct {
	completer interfaces.Completer
	logger    arbor.ILogger
}

// NewService creates an outline service
func NewService(completer interfaces.Completer, logger arbor.ILogger) *Service {
	return &Service{
		completer: completer,
		logger:    logger,
	}
}

// GenerateOutline produces a structured outline for the document. Research
// material is summarized into the prompt rather than passed wholesale:
// the top findings, statistics and trends only. A malformed response falls
// back to a minimal single-section outline carrying the raw text for
// diagnostics.
func (s *Service) GenerateOutline(ctx context.Context, title, topic string, research *models.ResearchBundle, opts models.GenerationOptions) (*models.Outline, interfaces.Usage, error) {
	prompt := s.buildOutlinePrompt(title, topic, research, opts)

	raw, usage, err := s.completer.Complete(ctx, prompt, 3000)
	if err != nil {
		return nil, usage, fmt.Errorf("outline call failed: %w", err)
	}

	var outline models.Outline
	if !llm.ParseJSON(raw, &outline) || len(outline.Sections) == 0 {
		s.logger.Warn().
			Str("title", title).
			Msg("Outline response not parseable, using minimal fallback outline")
		return fallbackOutline(title, topic, opts, raw), usage, nil
	}

	if outline.Title == "" {
		outline.Title = title
	}
	s.logger.Debug().
		Str("title", outline.Title).
		Int("sections", len(outline.Sections)).
		Int("word_target", outline.TotalWordTarget()).
		Msg("Outline generated")

	return &outline, usage, nil
}

// RefineOutline applies freeform feedback to an existing outline. If the
// model's revision cannot be parsed the original outline is returned
// unchanged; refinement never loses structure.
func (s *Service) RefineOutline(ctx context.Context, outline *models.Outline, feedback string) (*models.Outline, interfaces.Usage, error) {
	prompt := buildRefinePrompt(outline, feedback)

	raw, usage, err := s.completer.Complete(ctx, prompt, 3000)
	if err != nil {
		return nil, usage, fmt.Errorf("outline refinement call failed: %w", err)
	}

	var refined models.Outline
	if !llm.ParseJSON(raw, &refined) || len(refined.Sections) == 0 {
		s.logger.Warn().Msg("Refined outline not parseable, keeping original")
		return outline, usage, nil
	}

	if refined.Title == "" {
		refined.Title = outline.Title
	}
	return &refined, usage, nil
}

func (s *Service) buildOutlinePrompt(title, topic string, research *models.ResearchBundle, opts models.GenerationOptions) string {
	var b strings.Builder
	b.WriteString("You are an editorial director structuring a thought leadership report.\n\n")
	fmt.Fprintf(&b, "Title: %q\nTopic: %q\nTone: %s\n", title, topic, opts.Tone)
	fmt.Fprintf(&b, "Target length: about %d pages (%d words).\n", opts.TargetPages, opts.TargetPages*wordsPerPage)
	if opts.TemplateID != "" {
		fmt.Fprintf(&b, "Layout guidance: follow the %q template conventions.\n", opts.TemplateID)
	}

	if len(research.KeyFindings) > 0 {
		b.WriteString("\nKey research findings:\n")
		for _, f := range capStrings(research.KeyFindings, maxFindingsInPrompt) {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if len(research.Statistics) > 0 {
		b.WriteString("\nNotable statistics:\n")
		for i, st := range research.Statistics {
			if i >= maxStatisticsInPrompt {
				break
			}
			fmt.Fprintf(&b, "- %s (%s, source: %s)\n", st.Value, st.Context, st.Source)
		}
	}
	if len(research.Trends) > 0 {
		b.WriteString("\nTrends:\n")
		for _, tr := range capStrings(research.Trends, maxTrendsInPrompt) {
			fmt.Fprintf(&b, "- %s\n", tr)
		}
	}

	b.WriteString(`
Produce an outline with 6-10 sections as a single JSON object:
{
  "title": "...",
  "subtitle": "...",
  "executive_summary": {"key_points": ["...", ...], "word_count": 300},
  "sections": [
    {
      "title": "...",
      "purpose": "what the section covers",
      "word_count": 600,
      "subsections": [
        {"title": "...", "key_points": ["..."], "word_count": 300, "include_statistic": true, "include_chart": false}
      ]
    }
  ],
  "conclusion": {"key_points": ["..."], "call_to_action": "...", "word_count": 300}
}

Section word counts must sum to roughly the target length.
Return only the JSON object.`)
	return b.String()
}

func buildRefinePrompt(outline *models.Outline, feedback string) string {
	var b strings.Builder
	b.WriteString("You are an editorial director revising a report outline based on feedback.\n\n")
	b.WriteString("Current outline:\n")
	fmt.Fprintf(&b, "Title: %s\n", outline.Title)
	for i, sec := range outline.Sections {
		fmt.Fprintf(&b, "%d. %s - %s (%d words)\n", i+1, sec.Title, sec.Purpose, sec.WordCount)
		for _, sub := range sec.Subsections {
			fmt.Fprintf(&b, "   - %s\n", sub.Title)
		}
	}
	fmt.Fprintf(&b, "\nFeedback to apply:\n%s\n", feedback)
	b.WriteString(`
Return the complete revised outline as a single JSON object in the same shape
(title, subtitle, executive_summary, sections, conclusion). Return only the JSON object.`)
	return b.String()
}

func fallbackOutline(title, topic string, opts models.GenerationOptions, raw string) *models.Outline {
	return &models.Outline{
		Title: title,
		ExecutiveSummary: models.ExecutiveSummarySpec{
			KeyPoints: []string{topic},
			WordCount: 300,
		},
		Sections: []models.OutlineSection{
			{
				Title:     "Introduction",
				Purpose:   fmt.Sprintf("An introduction to %s", topic),
				WordCount: opts.TargetPages * wordsPerPage,
			},
		},
		Conclusion: models.ConclusionSpec{
			KeyPoints: []string{topic},
			WordCount: 300,
		},
		RawResponse: raw,
	}
}

func capStrings(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
