package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// Approximate blended cost per token, used for job resource accounting.
// Accounting is an estimate, not a billing source.
const (
	claudeCostPerToken = 6.0e-6
	geminiCostPerToken = 0.4e-6
)

// ProviderFactory routes completion calls to Claude or Gemini by model
// string and implements interfaces.Completer. Clients are created lazily
// and shared; each provider gets its own rate limiter.
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	logger       arbor.ILogger

	geminiClient  *genai.Client
	claudeClient  anthropic.Client
	claudeReady   bool
	geminiLimiter *rate.Limiter
	claudeLimiter *rate.Limiter
}

// Compile-time assertion
var _ interfaces.Completer = (*ProviderFactory)(nil)

// NewProviderFactory creates a new provider factory
func NewProviderFactory(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	logger arbor.ILogger,
) *ProviderFactory {
	return &ProviderFactory{
		geminiConfig:  geminiConfig,
		claudeConfig:  claudeConfig,
		llmConfig:     llmConfig,
		logger:        logger,
		geminiLimiter: newLimiter(geminiConfig.RateLimit, 4*time.Second),
		claudeLimiter: newLimiter(claudeConfig.RateLimit, time.Second),
	}
}

func newLimiter(interval string, fallback time.Duration) *rate.Limiter {
	d, err := time.ParseDuration(interval)
	if err != nil || d <= 0 {
		d = fallback
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-sonnet-4-20250514" -> Claude
// - "claude/claude-sonnet-4-20250514" -> Claude (with prefix)
// - "gemini-3-flash-preview" -> Gemini
// - Empty string -> uses default provider from config
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	if model == "" {
		return ProviderType(f.llmConfig.DefaultProvider)
	}

	model = strings.ToLower(model)

	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") {
		return ProviderGemini
	}

	if strings.HasPrefix(model, "claude-") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini-") {
		return ProviderGemini
	}

	return ProviderType(f.llmConfig.DefaultProvider)
}

// NormalizeModel removes provider prefix from model name if present
func (f *ProviderFactory) NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// WritingModel returns the model string configured for the writing stage
func (f *ProviderFactory) WritingModel() string {
	switch f.llmConfig.WritingProvider {
	case common.LLMProviderClaude:
		return f.claudeConfig.Model
	case common.LLMProviderGemini:
		return f.geminiConfig.Model
	default:
		return f.claudeConfig.Model
	}
}

// Complete sends a prompt to the default provider's model
func (f *ProviderFactory) Complete(ctx context.Context, prompt string, maxTokens int) (string, interfaces.Usage, error) {
	return f.CompleteWithModel(ctx, "", prompt, maxTokens)
}

// CompleteWithModel sends a prompt to the provider selected by model string
func (f *ProviderFactory) CompleteWithModel(ctx context.Context, model, prompt string, maxTokens int) (string, interfaces.Usage, error) {
	provider := f.DetectProvider(model)
	model = f.NormalizeModel(model)

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("max_tokens", maxTokens).
		Int("prompt_len", len(prompt)).
		Msg("Sending completion request")

	switch provider {
	case ProviderClaude:
		return f.completeWithClaude(ctx, model, prompt, maxTokens)
	case ProviderGemini:
		return f.completeWithGemini(ctx, model, prompt, maxTokens)
	default:
		return f.completeWithGemini(ctx, model, prompt, maxTokens)
	}
}

// getGeminiClient returns a Gemini client, creating one if necessary
func (f *ProviderFactory) getGeminiClient(ctx context.Context) (*genai.Client, error) {
	if f.geminiClient != nil {
		return f.geminiClient, nil
	}

	if f.geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  f.geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	f.geminiClient = client
	return client, nil
}

// getClaudeClient returns a Claude client, creating one if necessary
func (f *ProviderFactory) getClaudeClient() (anthropic.Client, error) {
	if f.claudeReady {
		return f.claudeClient, nil
	}

	if f.claudeConfig.APIKey == "" {
		return anthropic.Client{}, fmt.Errorf("Anthropic API key not configured")
	}

	f.claudeClient = anthropic.NewClient(
		option.WithAPIKey(f.claudeConfig.APIKey),
	)
	f.claudeReady = true
	return f.claudeClient, nil
}

func (f *ProviderFactory) completeWithClaude(ctx context.Context, model, prompt string, maxTokens int) (string, interfaces.Usage, error) {
	client, err := f.getClaudeClient()
	if err != nil {
		return "", interfaces.Usage{}, err
	}

	if model == "" {
		model = f.claudeConfig.Model
	}
	if maxTokens <= 0 {
		maxTokens = f.claudeConfig.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if f.claudeConfig.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(f.claudeConfig.Temperature))
	}

	var resp *anthropic.Message
	var apiErr error
	retryConfig := NewDefaultRetryConfig()

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		if err := f.claudeLimiter.Wait(ctx); err != nil {
			return "", interfaces.Usage{}, err
		}

		resp, apiErr = client.Messages.New(ctx, params)
		if apiErr == nil {
			break
		}

		if attempt == retryConfig.MaxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * 2 * time.Second
		if IsRateLimitError(apiErr) {
			backoff = retryConfig.CalculateBackoff(attempt, 0)
		}

		f.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Claude API call")

		select {
		case <-ctx.Done():
			return "", interfaces.Usage{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", interfaces.Usage{}, fmt.Errorf("Claude API call failed after %d retries: %w", retryConfig.MaxRetries, apiErr)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", interfaces.Usage{}, fmt.Errorf("empty response from Claude API")
	}

	tokens := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	return text.String(), interfaces.Usage{
		Tokens: tokens,
		Cost:   float64(tokens) * claudeCostPerToken,
	}, nil
}

func (f *ProviderFactory) completeWithGemini(ctx context.Context, model, prompt string, maxTokens int) (string, interfaces.Usage, error) {
	client, err := f.getGeminiClient(ctx)
	if err != nil {
		return "", interfaces.Usage{}, err
	}

	if model == "" {
		model = f.geminiConfig.Model
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(f.geminiConfig.Temperature),
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}

	var resp *genai.GenerateContentResponse
	var apiErr error
	retryConfig := NewDefaultRetryConfig()

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		if err := f.geminiLimiter.Wait(ctx); err != nil {
			return "", interfaces.Usage{}, err
		}

		resp, apiErr = client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
		if apiErr == nil {
			break
		}

		if attempt == retryConfig.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			apiDelay := ExtractRetryDelay(apiErr)
			backoff = retryConfig.CalculateBackoff(attempt, apiDelay)
		} else {
			backoff = time.Duration(attempt+1) * 2 * time.Second
		}

		f.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini API call")

		select {
		case <-ctx.Done():
			return "", interfaces.Usage{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", interfaces.Usage{}, fmt.Errorf("Gemini API call failed after %d retries: %w", retryConfig.MaxRetries, apiErr)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", interfaces.Usage{}, fmt.Errorf("empty response from Gemini API")
	}

	responseText := resp.Text()
	if responseText == "" {
		return "", interfaces.Usage{}, fmt.Errorf("empty text in Gemini response")
	}

	var tokens int
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return responseText, interfaces.Usage{
		Tokens: tokens,
		Cost:   float64(tokens) * geminiCostPerToken,
	}, nil
}

// Close releases provider clients
func (f *ProviderFactory) Close() error {
	f.geminiClient = nil
	f.claudeClient = anthropic.Client{}
	f.claudeReady = false
	return nil
}
