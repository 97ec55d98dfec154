// -----------------------------------------------------------------------
// Research Stage - topic and industry research via LLM synthesis
// -----------------------------------------------------------------------

package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/llm"
)

// Service conducts topic and industry research. Stateless given inputs;
// the only side effect is the LLM call.
type Service struct {
	completer interfaces.Completer
	logger    arbor.ILogger
}

// NewService creates a research service
func NewService(completer interfaces.Completer, logger arbor.ILogger) *Service {
	return &Service{
		completer: completer,
		logger:    logger,
	}
}

// ResearchTopic researches a topic and returns a structured bundle.
// A malformed model response is absorbed locally: the raw text becomes a
// single synthetic finding so downstream stages never see an empty bundle.
// Only a failed LLM call propagates as an error.
func (s *Service) ResearchTopic(ctx context.Context, topic string, keywords []string, depth models.ResearchDepth) (*models.ResearchBundle, interfaces.Usage, error) {
	prompt := buildTopicPrompt(topic, keywords)

	raw, usage, err := s.completer.Complete(ctx, prompt, depth.TokenBudget())
	if err != nil {
		return nil, usage, fmt.Errorf("research call failed: %w", err)
	}

	var bundle models.ResearchBundle
	if !llm.ParseJSON(raw, &bundle) {
		s.logger.Warn().
			Str("topic", topic).
			Int("response_len", len(raw)).
			Msg("Research response not parseable, using raw-text fallback bundle")
		return fallbackBundle(raw), usage, nil
	}

	s.logger.Debug().
		Str("topic", topic).
		Int("key_findings", len(bundle.KeyFindings)).
		Int("statistics", len(bundle.Statistics)).
		Msg("Research bundle parsed")

	return &bundle, usage, nil
}

// AnalyzeIndustry analyzes industry context for a topic. On a malformed
// response the analysis comes back with empty sub-objects but the industry
// name preserved.
func (s *Service) AnalyzeIndustry(ctx context.Context, industry, topic string) (*models.IndustryAnalysis, interfaces.Usage, error) {
	prompt := buildIndustryPrompt(industry, topic)

	raw, usage, err := s.completer.Complete(ctx, prompt, 2000)
	if err != nil {
		return nil, usage, fmt.Errorf("industry analysis call failed: %w", err)
	}

	var analysis models.IndustryAnalysis
	if !llm.ParseJSON(raw, &analysis) {
		s.logger.Warn().
			Str("industry", industry).
			Msg("Industry analysis response not parseable, using empty fallback")
		return &models.IndustryAnalysis{Industry: industry}, usage, nil
	}

	if analysis.Industry == "" {
		analysis.Industry = industry
	}
	return &analysis, usage, nil
}

func buildTopicPrompt(topic string, keywords []string) string {
	var b strings.Builder
	b.WriteString("You are a senior research analyst preparing source material for a thought leadership report.\n\n")
	fmt.Fprintf(&b, "Research the topic: %q\n", topic)
	if len(keywords) > 0 {
		fmt.Fprintf(&b, "Related keywords to explore: %s\n", strings.Join(keywords, ", "))
	}
	b.WriteString(`
Respond with a single JSON object with these keys:
{
  "key_findings": ["finding", ...],
  "statistics": [{"value": "73%", "context": "what it measures", "source": "publication"}, ...],
  "trends": ["trend", ...],
  "challenges": ["challenge", ...],
  "opportunities": ["opportunity", ...],
  "expert_perspectives": ["perspective", ...],
  "recommended_sources": ["source", ...]
}

Provide specific, citable findings and real-sounding statistics with sources.
Return only the JSON object.`)
	return b.String()
}

func buildIndustryPrompt(industry, topic string) string {
	return fmt.Sprintf(`You are an industry analyst.

Analyze the %q industry in the context of the topic %q.

Respond with a single JSON object:
{
  "industry": %q,
  "overview": "...",
  "trends": ["...", ...],
  "challenges": ["...", ...],
  "opportunities": ["...", ...],
  "regulatory_landscape": "...",
  "competitive_dynamics": "...",
  "outlook": "..."
}

Return only the JSON object.`, industry, topic, industry)
}

// fallbackRawTextLimit caps the synthetic finding built from unparseable output
const fallbackRawTextLimit = 500

func fallbackBundle(raw string) *models.ResearchBundle {
	finding := strings.TrimSpace(raw)
	if len(finding) > fallbackRawTextLimit {
		finding = finding[:fallbackRawTextLimit]
	}
	return &models.ResearchBundle{
		KeyFindings: []string{finding},
	}
}
