package models

// ResearchDepth controls the token budget of the research call
type ResearchDepth string

const (
	ResearchDepthShallow  ResearchDepth = "shallow"
	ResearchDepthStandard ResearchDepth = "standard"
	ResearchDepthDeep     ResearchDepth = "deep"
)

// TokenBudget maps a research depth to its completion token budget
func (d ResearchDepth) TokenBudget() int {
	switch d {
	case ResearchDepthShallow:
		return 1000
	case ResearchDepthDeep:
		return 4000
	default:
		return 2000
	}
}

// ResearchStatistic is a quantitative claim surfaced during research
type ResearchStatistic struct {
	Value   string `json:"value"`
	Context string `json:"context"`
	Source  string `json:"source,omitempty"`
}

// IndustryAnalysis is the industry context sub-object of a research bundle
type IndustryAnalysis struct {
	Industry            string   `json:"industry"`
	Overview            string   `json:"overview,omitempty"`
	Trends              []string `json:"trends,omitempty"`
	Challenges          []string `json:"challenges,omitempty"`
	Opportunities       []string `json:"opportunities,omitempty"`
	RegulatoryLandscape string   `json:"regulatory_landscape,omitempty"`
	CompetitiveDynamics string   `json:"competitive_dynamics,omitempty"`
	Outlook             string   `json:"outlook,omitempty"`
}

// ResearchBundle is the ephemeral output of the research stage. It is
// consumed by the outline and writing stages and never persisted on its own.
type ResearchBundle struct {
	KeyFindings        []string            `json:"key_findings"`
	Statistics         []ResearchStatistic `json:"statistics,omitempty"`
	Trends             []string            `json:"trends,omitempty"`
	Challenges         []string            `json:"challenges,omitempty"`
	Opportunities      []string            `json:"opportunities,omitempty"`
	ExpertPerspectives []string            `json:"expert_perspectives,omitempty"`
	RecommendedSources []string            `json:"recommended_sources,omitempty"`
	IndustryAnalysis   *IndustryAnalysis   `json:"industry_analysis,omitempty"`
}
