// -----------------------------------------------------------------------
// Writing Stage - long-form content generation from an outline
// -----------------------------------------------------------------------

package writer

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// toneDescriptors maps a tone name to the style instruction handed to the
// model. Unknown tones get the professional descriptor.
var toneDescriptors = map[string]string{
	"professional":   "authoritative, polished, and businesslike; confident without jargon",
	"conversational": "warm and direct, written as if speaking to a smart colleague",
	"academic":       "precise and formal, with careful qualification of claims",
	"persuasive":     "compelling and action-oriented, building a case toward a decision",
}

const (
	defaultSectionWords = 500
	maxWovenFindings    = 3
	maxWovenStatistics  = 3
)

// Service writes document prose section by section. Writing calls are
// routed to the configured writing model; unlike the planning stages a
// failed or unusable response here is an error, never silently absorbed,
// because partial prose cannot be patched downstream.
type Service struct {
	completer interfaces.Completer
	logger    arbor.ILogger
}

// NewService creates a writer service
func NewService(completer interfaces.Completer, logger arbor.ILogger) *Service {
	return &Service{
		completer: completer,
		logger:    logger,
	}
}

// GenerateSection writes one unit of prose. The returned text is markdown
// body content without a heading; headings come from the outline at render
// time. The token budget scales with the word target.
func (s *Service) GenerateSection(ctx context.Context, title, guidance string, keyPoints []string, tone string, targetWords int) (string, interfaces.Usage, error) {
	if targetWords <= 0 {
		targetWords = defaultSectionWords
	}
	prompt := buildSectionPrompt(title, guidance, keyPoints, tone, targetWords)

	raw, usage, err := s.completer.CompleteWithModel(ctx, s.completer.WritingModel(), prompt, 2*targetWords)
	if err != nil {
		return "", usage, fmt.Errorf("writing %q failed: %w", title, err)
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return "", usage, fmt.Errorf("writing %q returned empty content", title)
	}
	return text, usage, nil
}

// GenerateFullDocument writes the complete document in outline order:
// executive summary, each section (flat, or one call per subsection when the
// outline nests), then the conclusion. Any single failure aborts the whole
// document; no partially written content is returned.
func (s *Service) GenerateFullDocument(ctx context.Context, outline *models.Outline, research *models.ResearchBundle, opts models.GenerationOptions) (*models.DocumentContent, interfaces.Usage, error) {
	var total interfaces.Usage
	tone := opts.Tone

	summary, usage, err := s.GenerateSection(ctx,
		"Executive Summary",
		fmt.Sprintf("Summarize the whole report %q for a time-poor executive.", outline.Title),
		outline.ExecutiveSummary.KeyPoints,
		tone,
		wordTarget(outline.ExecutiveSummary.WordCount, 300))
	total = total.Add(usage)
	if err != nil {
		return nil, total, err
	}

	sections := make([]models.Section, 0, len(outline.Sections))
	for _, plan := range outline.Sections {
		section := models.Section{
			ID:    plan.ID,
			Title: plan.Title,
		}

		if len(plan.Subsections) == 0 {
			content, usage, err := s.GenerateSection(ctx, plan.Title, plan.Purpose, sectionKeyPoints(plan, research), tone, wordTarget(plan.WordCount, defaultSectionWords))
			total = total.Add(usage)
			if err != nil {
				return nil, total, err
			}
			section.Content = content
		} else {
			for _, sub := range plan.Subsections {
				guidance := fmt.Sprintf("This is the %q part of the section %q. %s", sub.Title, plan.Title, plan.Purpose)
				points := sub.KeyPoints
				if sub.IncludeStatistic || sub.IncludeChart {
					points = append(append([]string(nil), points...), statisticPoints(research)...)
				}
				content, usage, err := s.GenerateSection(ctx, sub.Title, guidance, points, tone, wordTarget(sub.WordCount, 300))
				total = total.Add(usage)
				if err != nil {
					return nil, total, err
				}
				section.Subsections = append(section.Subsections, models.Subsection{
					ID:      sub.ID,
					Title:   sub.Title,
					Content: content,
				})
			}
		}
		sections = append(sections, section)
	}

	conclusionBody, usage, err := s.GenerateSection(ctx,
		"Conclusion",
		fmt.Sprintf("Close the report %q with synthesis, not new material.", outline.Title),
		outline.Conclusion.KeyPoints,
		tone,
		wordTarget(outline.Conclusion.WordCount, 300))
	total = total.Add(usage)
	if err != nil {
		return nil, total, err
	}

	cta := outline.Conclusion.CallToAction
	if cta == "" {
		cta, usage, err = s.generateCallToAction(ctx, outline.Title, tone)
		total = total.Add(usage)
		if err != nil {
			return nil, total, err
		}
	}

	content := &models.DocumentContent{
		Version:          models.ContentVersion,
		Title:            outline.Title,
		Subtitle:         outline.Subtitle,
		ExecutiveSummary: summary,
		Sections:         sections,
		Conclusion: models.Conclusion{
			Content:      conclusionBody,
			CallToAction: cta,
		},
	}

	s.logger.Info().
		Str("title", content.Title).
		Int("sections", len(content.Sections)).
		Int("words", content.WordCount()).
		Msg("Document content written")

	return content, total, nil
}

func (s *Service) generateCallToAction(ctx context.Context, title, tone string) (string, interfaces.Usage, error) {
	prompt := fmt.Sprintf(`Write a single short call-to-action paragraph (2-3 sentences) closing the report %q.
Style: %s.
Return only the paragraph, no heading.`, title, toneDescriptor(tone))

	raw, usage, err := s.completer.CompleteWithModel(ctx, s.completer.WritingModel(), prompt, 300)
	if err != nil {
		return "", usage, fmt.Errorf("writing call to action failed: %w", err)
	}
	return strings.TrimSpace(raw), usage, nil
}

func buildSectionPrompt(title, guidance string, keyPoints []string, tone string, targetWords int) string {
	var b strings.Builder
	b.WriteString("You are a senior writer producing a section of a thought leadership report.\n\n")
	fmt.Fprintf(&b, "Section: %q\n", title)
	if guidance != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", guidance)
	}
	if len(keyPoints) > 0 {
		b.WriteString("Cover these points:\n")
		for _, p := range keyPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	fmt.Fprintf(&b, "\nStyle: %s.\n", toneDescriptor(tone))
	fmt.Fprintf(&b, "Length: about %d words.\n", targetWords)
	b.WriteString("Write the body in markdown. Do not include the section heading; start with prose.\n")
	return b.String()
}

func toneDescriptor(tone string) string {
	if d, ok := toneDescriptors[tone]; ok {
		return d
	}
	return toneDescriptors["professional"]
}

func sectionKeyPoints(plan models.OutlineSection, research *models.ResearchBundle) []string {
	// Flat sections get a few findings and statistics mixed in so the
	// prose stays grounded in the research
	points := make([]string, 0, maxWovenFindings+maxWovenStatistics)
	for i, f := range research.KeyFindings {
		if i >= maxWovenFindings {
			break
		}
		points = append(points, f)
	}
	return append(points, statisticPoints(research)...)
}

// statisticPoints formats research statistics as prompt points the writer
// should weave into the prose
func statisticPoints(research *models.ResearchBundle) []string {
	points := make([]string, 0, maxWovenStatistics)
	for _, st := range research.Statistics {
		if len(points) >= maxWovenStatistics {
			break
		}
		point := fmt.Sprintf("Cite this statistic: %s %s", st.Value, st.Context)
		if st.Source != "" {
			point += fmt.Sprintf(" (%s)", st.Source)
		}
		points = append(points, point)
	}
	return points
}

func wordTarget(planned, fallback int) int {
	if planned > 0 {
		return planned
	}
	return fallback
}
