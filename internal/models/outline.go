package models

// ExecutiveSummarySpec describes the planned executive summary
type ExecutiveSummarySpec struct {
	KeyPoints []string `json:"key_points,omitempty"`
	WordCount int      `json:"word_count,omitempty"`
}

// OutlineSubsection is one planned nested content unit
type OutlineSubsection struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	KeyPoints        []string `json:"key_points,omitempty"`
	WordCount        int      `json:"word_count,omitempty"`
	IncludeStatistic bool     `json:"include_statistic,omitempty"`
	IncludeChart     bool     `json:"include_chart,omitempty"`
}

// OutlineSection is one planned top-level section
type OutlineSection struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Purpose     string              `json:"purpose,omitempty"`
	WordCount   int                 `json:"word_count,omitempty"`
	Subsections []OutlineSubsection `json:"subsections,omitempty"`
}

// ConclusionSpec describes the planned conclusion
type ConclusionSpec struct {
	KeyPoints    []string `json:"key_points,omitempty"`
	WordCount    int      `json:"word_count,omitempty"`
	CallToAction string   `json:"call_to_action,omitempty"`
}

// Outline is the ephemeral section plan produced by the outline stage.
// It is embedded in the job step log for diagnostics and discarded after
// content generation, never persisted independently.
type Outline struct {
	Title            string               `json:"title"`
	Subtitle         string               `json:"subtitle,omitempty"`
	ExecutiveSummary ExecutiveSummarySpec `json:"executive_summary,omitempty"`
	Sections         []OutlineSection     `json:"sections"`
	Conclusion       ConclusionSpec       `json:"conclusion,omitempty"`

	// RawResponse holds the unparseable model output when the fallback
	// outline was used, for diagnostics only.
	RawResponse string `json:"raw_response,omitempty"`
}

// TotalWordTarget sums the word-count budgets across the outline
func (o *Outline) TotalWordTarget() int {
	total := o.ExecutiveSummary.WordCount + o.Conclusion.WordCount
	for _, s := range o.Sections {
		if len(s.Subsections) > 0 {
			for _, sub := range s.Subsections {
				total += sub.WordCount
			}
			continue
		}
		total += s.WordCount
	}
	return total
}
