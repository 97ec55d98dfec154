package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

type fakeWriter struct {
	calls   int
	failAt  int
	err     error
	models  []string
	prompts []string
	budgets []int
}

func (f *fakeWriter) Complete(ctx context.Context, prompt string, maxTokens int) (string, interfaces.Usage, error) {
	return f.CompleteWithModel(ctx, "default", prompt, maxTokens)
}

func (f *fakeWriter) CompleteWithModel(_ context.Context, model, prompt string, maxTokens int) (string, interfaces.Usage, error) {
	f.calls++
	f.models = append(f.models, model)
	f.prompts = append(f.prompts, prompt)
	f.budgets = append(f.budgets, maxTokens)
	if f.err != nil && (f.failAt == 0 || f.calls == f.failAt) {
		return "", interfaces.Usage{}, f.err
	}
	return fmt.Sprintf("Generated prose for call %d.", f.calls), interfaces.Usage{Tokens: 200, Cost: 0.002}, nil
}

func (f *fakeWriter) WritingModel() string { return "writing-model" }

func TestGenerateSection_TokenBudgetScalesWithWords(t *testing.T) {
	fake := &fakeWriter{}
	svc := NewService(fake, arbor.NewLogger())

	_, _, err := svc.GenerateSection(context.Background(), "Adoption", "cover adoption", nil, "professional", 600)
	require.NoError(t, err)
	require.Len(t, fake.budgets, 1)
	assert.Equal(t, 1200, fake.budgets[0])
	assert.Equal(t, "writing-model", fake.models[0])
}

func TestGenerateSection_UnknownToneFallsBackToProfessional(t *testing.T) {
	fake := &fakeWriter{}
	svc := NewService(fake, arbor.NewLogger())

	_, _, err := svc.GenerateSection(context.Background(), "Adoption", "", nil, "sardonic", 400)
	require.NoError(t, err)
	assert.Contains(t, fake.prompts[0], toneDescriptors["professional"])
}

func TestGenerateSection_ErrorPropagates(t *testing.T) {
	fake := &fakeWriter{err: errors.New("provider down")}
	svc := NewService(fake, arbor.NewLogger())

	_, _, err := svc.GenerateSection(context.Background(), "Adoption", "", nil, "professional", 400)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Adoption")
}

func testOutline() *models.Outline {
	return &models.Outline{
		Title:    "The Future of Remote Work",
		Subtitle: "A field guide",
		ExecutiveSummary: models.ExecutiveSummarySpec{
			KeyPoints: []string{"Hybrid is the default"},
			WordCount: 300,
		},
		Sections: []models.OutlineSection{
			{Title: "State of Play", Purpose: "Where things stand", WordCount: 600},
			{Title: "Operating Models", Subsections: []models.OutlineSubsection{
				{Title: "Fully remote", WordCount: 300},
				{Title: "Hybrid", WordCount: 300},
			}},
		},
		Conclusion: models.ConclusionSpec{
			KeyPoints:    []string{"Act now"},
			CallToAction: "Book a consultation",
			WordCount:    250,
		},
	}
}

func TestGenerateFullDocument_AssemblesInOutlineOrder(t *testing.T) {
	fake := &fakeWriter{}
	svc := NewService(fake, arbor.NewLogger())

	content, usage, err := svc.GenerateFullDocument(context.Background(), testOutline(), &models.ResearchBundle{KeyFindings: []string{"finding"}}, models.GenerationOptions{Tone: "professional"})
	require.NoError(t, err)

	assert.Equal(t, models.ContentVersion, content.Version)
	assert.Equal(t, "The Future of Remote Work", content.Title)
	assert.NotEmpty(t, content.ExecutiveSummary)

	require.Len(t, content.Sections, 2)
	assert.Equal(t, "State of Play", content.Sections[0].Title)
	assert.NotEmpty(t, content.Sections[0].Content)
	assert.Empty(t, content.Sections[0].Subsections)

	assert.Equal(t, "Operating Models", content.Sections[1].Title)
	assert.Empty(t, content.Sections[1].Content)
	require.Len(t, content.Sections[1].Subsections, 2)
	assert.Equal(t, "Fully remote", content.Sections[1].Subsections[0].Title)

	assert.NotEmpty(t, content.Conclusion.Content)
	assert.Equal(t, "Book a consultation", content.Conclusion.CallToAction)

	// summary + flat section + 2 subsections + conclusion
	assert.Equal(t, 5, fake.calls)
	assert.Equal(t, 5*200, usage.Tokens)
}

func TestGenerateFullDocument_GeneratesCTAWhenOutlineOmitsIt(t *testing.T) {
	fake := &fakeWriter{}
	svc := NewService(fake, arbor.NewLogger())

	outline := testOutline()
	outline.Conclusion.CallToAction = ""
	content, _, err := svc.GenerateFullDocument(context.Background(), outline, &models.ResearchBundle{}, models.GenerationOptions{Tone: "persuasive"})
	require.NoError(t, err)
	assert.NotEmpty(t, content.Conclusion.CallToAction)
	assert.Equal(t, 6, fake.calls)
}

func TestGenerateFullDocument_AbortsOnMidwayFailure(t *testing.T) {
	fake := &fakeWriter{err: errors.New("provider down"), failAt: 3}
	svc := NewService(fake, arbor.NewLogger())

	content, usage, err := svc.GenerateFullDocument(context.Background(), testOutline(), &models.ResearchBundle{}, models.GenerationOptions{Tone: "professional"})
	require.Error(t, err)
	assert.Nil(t, content)
	// usage from the calls that did succeed is still reported
	assert.Equal(t, 2*200, usage.Tokens)
}

func TestGenerateFullDocument_WeavesStatisticsIntoFlatSections(t *testing.T) {
	fake := &fakeWriter{}
	svc := NewService(fake, arbor.NewLogger())

	research := &models.ResearchBundle{
		KeyFindings: []string{"finding"},
		Statistics: []models.ResearchStatistic{
			{Value: "73%", Context: "of companies allow hybrid work", Source: "Gartner"},
			{Value: "45%", Context: "fully remote"},
			{Value: "12%", Context: "office only"},
			{Value: "8%", Context: "undecided"},
		},
	}
	_, _, err := svc.GenerateFullDocument(context.Background(), testOutline(), research, models.GenerationOptions{})
	require.NoError(t, err)

	// Call 2 is the flat "State of Play" section
	flatPrompt := fake.prompts[1]
	assert.Contains(t, flatPrompt, "73% of companies allow hybrid work (Gartner)")
	assert.Contains(t, flatPrompt, "45% fully remote")
	assert.Contains(t, flatPrompt, "12% office only")
	assert.NotContains(t, flatPrompt, "8%", "at most three statistics are woven in")

	// Subsections without the statistic flag stay on their own key points
	assert.NotContains(t, fake.prompts[2], "73%")
}

func TestGenerateFullDocument_SubsectionStatisticFlag(t *testing.T) {
	fake := &fakeWriter{}
	svc := NewService(fake, arbor.NewLogger())

	outline := testOutline()
	outline.Sections[1].Subsections[0].IncludeStatistic = true
	outline.Sections[1].Subsections[1].IncludeChart = true
	research := &models.ResearchBundle{
		Statistics: []models.ResearchStatistic{{Value: "73%", Context: "of companies allow hybrid work"}},
	}
	_, _, err := svc.GenerateFullDocument(context.Background(), outline, research, models.GenerationOptions{})
	require.NoError(t, err)

	// Calls 3 and 4 are the flagged subsections
	assert.Contains(t, fake.prompts[2], "73% of companies allow hybrid work")
	assert.Contains(t, fake.prompts[3], "73% of companies allow hybrid work")
}

func TestGenerateFullDocument_SectionCountMatchesOutline(t *testing.T) {
	fake := &fakeWriter{}
	svc := NewService(fake, arbor.NewLogger())

	outline := testOutline()
	content, _, err := svc.GenerateFullDocument(context.Background(), outline, &models.ResearchBundle{}, models.GenerationOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(outline.Sections), len(content.Sections))
	for i := range outline.Sections {
		assert.True(t, strings.EqualFold(outline.Sections[i].Title, content.Sections[i].Title))
	}
}
