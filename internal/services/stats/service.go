// -----------------------------------------------------------------------
// Statistics Stage - quantitative claim extraction and visualization hints
// -----------------------------------------------------------------------

package stats

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/llm"
)

const (
	maxContentChars      = 5000
	maxResearchStats     = 10
	maxFallbackResearch  = 5
	maxPieSlices         = 5
	minCategoryMembers   = 3
	highPriorityMinCount = 4
)

var (
	percentRegex  = regexp.MustCompile(`\d+(?:\.\d+)?%`)
	currencyRegex = regexp.MustCompile(`\$\d[\d,]*(?:\.\d+)?(?:\s*(?:thousand|million|billion|trillion|[KMBT]))?`)
	bigNumRegex   = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:thousand|million|billion|trillion)`)
)

// Service extracts statistics from generated content and turns them into
// chart-able suggestions. Extraction absorbs LLM parse failures with a
// regex fallback so the pipeline always has something to visualize.
type Service struct {
	completer interfaces.Completer
	logger    arbor.ILogger
}

// NewService creates a statistics service
func NewService(completer interfaces.Completer, logger arbor.ILogger) *Service {
	return &Service{
		completer: completer,
		logger:    logger,
	}
}

// ExtractStatistics pulls 5-15 tagged statistics from the compiled content,
// seeding the prompt with statistics the research stage already found. When
// the model response cannot be parsed it falls back to regex extraction over
// the content plus up to 5 leftover research statistics.
func (s *Service) ExtractStatistics(ctx context.Context, content string, research []models.ResearchStatistic) ([]models.Statistic, interfaces.Usage, error) {
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}
	prompt := buildExtractionPrompt(content, research)

	raw, usage, err := s.completer.Complete(ctx, prompt, 2000)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Statistics call failed, using regex fallback")
		return s.fallbackStatistics(content, research), usage, nil
	}

	var parsed struct {
		Statistics []models.Statistic `json:"statistics"`
	}
	if !llm.ParseJSON(raw, &parsed) || len(parsed.Statistics) == 0 {
		s.logger.Warn().Msg("Statistics response not parseable, using regex fallback")
		return s.fallbackStatistics(content, research), usage, nil
	}

	s.logger.Debug().Int("count", len(parsed.Statistics)).Msg("Statistics extracted")
	return parsed.Statistics, usage, nil
}

// DisplayRecord is the formatted shape of one statistic for a given
// display style. Fields are populated per-style; unused fields stay empty.
type DisplayRecord struct {
	Primary     string `json:"primary,omitempty"`
	Secondary   string `json:"secondary,omitempty"`
	Attribution string `json:"attribution,omitempty"`
	Text        string `json:"text,omitempty"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// FormatStatistic formats a statistic for display. Pure function, no I/O.
// Unknown styles produce the callout shape.
func FormatStatistic(stat models.Statistic, style string) DisplayRecord {
	switch style {
	case "inline":
		line := fmt.Sprintf("%s %s", stat.Value, stat.Context)
		if stat.Source != "" {
			line += fmt.Sprintf(" (%s)", stat.Source)
		}
		return DisplayRecord{Text: line}
	case "chart_label":
		return DisplayRecord{
			Label:       truncate(stat.Value, 20),
			Description: truncate(stat.Context, 60),
		}
	default:
		rec := DisplayRecord{
			Primary:   stat.Value,
			Secondary: stat.Context,
		}
		if stat.Source != "" {
			rec.Attribution = "Source: " + stat.Source
		}
		return rec
	}
}

// SuggestVisualizations groups statistics by category and proposes charts.
// Categories with at least 3 members whose values parse numerically become
// horizontal bars; highlight-worthy statistics yield at most one callout per
// category; percentage values that plausibly partition a whole become one
// pie chart.
func SuggestVisualizations(statistics []models.Statistic) []models.VisualizationSuggestion {
	var suggestions []models.VisualizationSuggestion

	byCategory := make(map[string][]models.Statistic)
	var categoryOrder []string
	for _, stat := range statistics {
		cat := stat.Category
		if cat == "" {
			cat = "general"
		}
		if _, seen := byCategory[cat]; !seen {
			categoryOrder = append(categoryOrder, cat)
		}
		byCategory[cat] = append(byCategory[cat], stat)
	}

	for _, cat := range categoryOrder {
		group := byCategory[cat]
		if len(group) < minCategoryMembers {
			continue
		}
		var labels []string
		var values []float64
		for _, stat := range group {
			if v, ok := parseNumeric(stat.Value); ok {
				labels = append(labels, truncate(stat.Context, 40))
				values = append(values, v)
			}
		}
		if len(values) < 2 {
			continue
		}
		priority := "medium"
		if len(values) >= highPriorityMinCount {
			priority = "high"
		}
		suggestions = append(suggestions, models.VisualizationSuggestion{
			Type:        "horizontal_bar",
			Title:       titleCase(cat) + " at a Glance",
			Data:        models.ChartData{Labels: labels, Values: values},
			Description: fmt.Sprintf("Comparison of %d %s statistics", len(values), cat),
			Priority:    priority,
		})
	}

	calloutSeen := make(map[string]bool)
	for _, stat := range statistics {
		if !stat.HighlightWorthy {
			continue
		}
		cat := stat.Category
		if cat == "" {
			cat = "general"
		}
		if calloutSeen[cat] {
			continue
		}
		calloutSeen[cat] = true
		suggestions = append(suggestions, models.VisualizationSuggestion{
			Type:        "callout",
			Title:       stat.Value,
			Description: stat.Context,
			Priority:    "high",
		})
	}

	var pieLabels []string
	var pieValues []float64
	var pieSum float64
	for _, stat := range statistics {
		if len(pieValues) >= maxPieSlices {
			break
		}
		if !strings.Contains(stat.Value, "%") {
			continue
		}
		if v, ok := parseNumeric(stat.Value); ok {
			pieLabels = append(pieLabels, truncate(stat.Context, 40))
			pieValues = append(pieValues, v)
			pieSum += v
		}
	}
	if len(pieValues) >= 2 && pieSum <= 100 {
		suggestions = append(suggestions, models.VisualizationSuggestion{
			Type:        "pie",
			Title:       "Share Breakdown",
			Data:        models.ChartData{Labels: pieLabels, Values: pieValues},
			Description: "Percentage distribution across reported segments",
			Priority:    "medium",
		})
	}

	return suggestions
}

func (s *Service) fallbackStatistics(content string, research []models.ResearchStatistic) []models.Statistic {
	var out []models.Statistic
	seen := make(map[string]bool)

	add := func(value, vizType string) {
		if seen[value] {
			return
		}
		seen[value] = true
		out = append(out, models.Statistic{
			Value:             value,
			Context:           contextAround(content, value),
			Category:          "general",
			VisualizationType: vizType,
		})
	}

	for _, m := range percentRegex.FindAllString(content, -1) {
		add(m, "percentage")
	}
	for _, m := range currencyRegex.FindAllString(content, -1) {
		add(m, "currency")
	}
	for _, m := range bigNumRegex.FindAllString(content, -1) {
		add(m, "number")
	}

	for i, rs := range research {
		if i >= maxFallbackResearch {
			break
		}
		if seen[rs.Value] {
			continue
		}
		seen[rs.Value] = true
		out = append(out, models.Statistic{
			Value:             rs.Value,
			Context:           rs.Context,
			Source:            rs.Source,
			Category:          "research",
			HighlightWorthy:   true,
			VisualizationType: classifyValue(rs.Value),
		})
	}

	s.logger.Debug().Int("count", len(out)).Msg("Fallback statistics assembled")
	return out
}

func buildExtractionPrompt(content string, research []models.ResearchStatistic) string {
	var b strings.Builder
	b.WriteString("You are a data editor identifying quantitative claims in a report.\n\n")
	b.WriteString("Report content:\n---\n")
	b.WriteString(content)
	b.WriteString("\n---\n")

	if len(research) > 0 {
		b.WriteString("\nStatistics already known from research:\n")
		for i, rs := range research {
			if i >= maxResearchStats {
				break
			}
			fmt.Fprintf(&b, "- %s: %s (source: %s)\n", rs.Value, rs.Context, rs.Source)
		}
	}

	b.WriteString(`
Extract 5-15 statistics as a single JSON object:
{
  "statistics": [
    {
      "value": "73%",
      "context": "what the number measures",
      "source": "attribution if known",
      "category": "adoption|cost|growth|workforce|other",
      "highlight_worthy": true,
      "visualization_type": "percentage|currency|number|comparison"
    }
  ]
}

Return only the JSON object.`)
	return b.String()
}

func classifyValue(value string) string {
	switch {
	case strings.Contains(value, "%"):
		return "percentage"
	case strings.Contains(value, "$"):
		return "currency"
	default:
		return "number"
	}
}

// contextAround returns a short window of content surrounding the match
func contextAround(content, match string) string {
	idx := strings.Index(content, match)
	if idx < 0 {
		return ""
	}
	start := idx - 60
	if start < 0 {
		start = 0
	}
	end := idx + len(match) + 60
	if end > len(content) {
		end = len(content)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(content[start:end]), " "))
}

var numericStrip = strings.NewReplacer("%", "", "$", "", ",", "")

func parseNumeric(value string) (float64, bool) {
	cleaned := strings.TrimSpace(numericStrip.Replace(value))
	if i := strings.IndexFunc(cleaned, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r == '.' || r == '-')
	}); i >= 0 {
		cleaned = cleaned[:i]
	}
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// truncate cuts on rune boundaries so multi-byte text never splits
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
