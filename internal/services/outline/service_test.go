package outline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, _ int) (string, interfaces.Usage, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", interfaces.Usage{}, f.err
	}
	return f.response, interfaces.Usage{Tokens: 50}, nil
}

func (f *fakeCompleter) CompleteWithModel(ctx context.Context, _, prompt string, maxTokens int) (string, interfaces.Usage, error) {
	return f.Complete(ctx, prompt, maxTokens)
}

func (f *fakeCompleter) WritingModel() string { return "fake-model" }

func defaultOptions() models.GenerationOptions {
	return models.GenerationOptions{
		Tone:          "professional",
		TargetPages:   10,
		ResearchDepth: "standard",
	}
}

const validOutlineJSON = `{
  "title": "The Future of Remote Work",
  "subtitle": "A field guide",
  "executive_summary": {"key_points": ["Hybrid is the default"], "word_count": 300},
  "sections": [
    {"title": "State of Play", "purpose": "Where remote work stands", "word_count": 800,
     "subsections": [{"title": "Adoption", "key_points": ["73% allow hybrid"], "word_count": 400, "include_statistic": true, "include_chart": true}]},
    {"title": "What Comes Next", "purpose": "Forward outlook", "word_count": 900}
  ],
  "conclusion": {"key_points": ["Act now"], "call_to_action": "Book a consultation", "word_count": 250}
}`

func TestGenerateOutline_ParsesResponse(t *testing.T) {
	fake := &fakeCompleter{response: validOutlineJSON}
	svc := NewService(fake, arbor.NewLogger())

	research := &models.ResearchBundle{KeyFindings: []string{"finding"}}
	outline, usage, err := svc.GenerateOutline(context.Background(), "The Future of Remote Work", "remote work", research, defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "The Future of Remote Work", outline.Title)
	require.Len(t, outline.Sections, 2)
	assert.Equal(t, "State of Play", outline.Sections[0].Title)
	require.Len(t, outline.Sections[0].Subsections, 1)
	assert.True(t, outline.Sections[0].Subsections[0].IncludeChart)
	assert.Equal(t, 50, usage.Tokens)
	assert.Empty(t, outline.RawResponse)
}

func TestGenerateOutline_PromptSummarizesResearch(t *testing.T) {
	fake := &fakeCompleter{response: validOutlineJSON}
	svc := NewService(fake, arbor.NewLogger())

	research := &models.ResearchBundle{
		KeyFindings: []string{"f1", "f2", "f3", "f4", "f5", "f6", "f7"},
		Trends:      []string{"t1", "t2", "t3", "t4"},
	}
	_, _, err := svc.GenerateOutline(context.Background(), "Title", "topic", research, defaultOptions())
	require.NoError(t, err)

	prompt := fake.prompts[0]
	assert.Contains(t, prompt, "f5")
	assert.NotContains(t, prompt, "f6")
	assert.Contains(t, prompt, "t3")
	assert.NotContains(t, prompt, "t4")
}

func TestGenerateOutline_FallbackOnUnparseableResponse(t *testing.T) {
	fake := &fakeCompleter{response: "prose, not JSON"}
	svc := NewService(fake, arbor.NewLogger())

	outline, _, err := svc.GenerateOutline(context.Background(), "Title", "remote work", &models.ResearchBundle{}, defaultOptions())
	require.NoError(t, err)

	require.Len(t, outline.Sections, 1)
	assert.Equal(t, "Introduction", outline.Sections[0].Title)
	assert.True(t, strings.Contains(outline.Sections[0].Purpose, "remote work"))
	assert.Equal(t, "prose, not JSON", outline.RawResponse)
}

func TestGenerateOutline_ErrorPropagates(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("provider down")}
	svc := NewService(fake, arbor.NewLogger())

	_, _, err := svc.GenerateOutline(context.Background(), "Title", "topic", &models.ResearchBundle{}, defaultOptions())
	assert.Error(t, err)
}

func TestRefineOutline_ReplacesOutline(t *testing.T) {
	fake := &fakeCompleter{response: validOutlineJSON}
	svc := NewService(fake, arbor.NewLogger())

	original := &models.Outline{Title: "Old", Sections: []models.OutlineSection{{Title: "Only"}}}
	refined, _, err := svc.RefineOutline(context.Background(), original, "add a forward outlook section")
	require.NoError(t, err)

	assert.Equal(t, "The Future of Remote Work", refined.Title)
	assert.Len(t, refined.Sections, 2)
}

func TestRefineOutline_KeepsOriginalOnBadResponse(t *testing.T) {
	fake := &fakeCompleter{response: "sorry, cannot help"}
	svc := NewService(fake, arbor.NewLogger())

	original := &models.Outline{Title: "Old", Sections: []models.OutlineSection{{Title: "Only"}}}
	refined, _, err := svc.RefineOutline(context.Background(), original, "feedback")
	require.NoError(t, err)
	assert.Same(t, original, refined)
}
