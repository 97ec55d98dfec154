package models

// Statistic is a quantitative claim extracted from generated content,
// tagged for display and visualization.
type Statistic struct {
	Value             string `json:"value"` // Raw string, may include %, $, magnitude suffixes
	Context           string `json:"context"`
	Source            string `json:"source,omitempty"`
	Category          string `json:"category,omitempty"`
	HighlightWorthy   bool   `json:"highlight_worthy,omitempty"`
	VisualizationType string `json:"visualization_type,omitempty"`
}

// ChartData carries labeled numeric series for a chart
type ChartData struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// VisualizationSuggestion proposes one chart or callout over statistics
type VisualizationSuggestion struct {
	Type        string    `json:"type"` // bar, horizontal_bar, line, pie, donut, callout
	Title       string    `json:"title"`
	Data        ChartData `json:"data"`
	Description string    `json:"description,omitempty"`
	Priority    string    `json:"priority"` // high, medium, low
}

// ChartImage is a rendered chart embedded in document content.
// PNG bytes serialize as base64 in JSON.
type ChartImage struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	PNG   []byte `json:"png"`
}
