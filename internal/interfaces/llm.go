package interfaces

import "context"

// Usage reports resource consumption of one completion call
type Usage struct {
	Tokens int
	Cost   float64
}

// Add returns the sum of two usage records
func (u Usage) Add(other Usage) Usage {
	return Usage{
		Tokens: u.Tokens + other.Tokens,
		Cost:   u.Cost + other.Cost,
	}
}

// Completer is the capability interface every pipeline stage depends on.
// Stages receive it via constructor injection so they are testable with
// fakes; the concrete implementation routes to a provider by model string.
type Completer interface {
	// Complete sends a prompt to the default model and returns raw text
	Complete(ctx context.Context, prompt string, maxTokens int) (string, Usage, error)
	// CompleteWithModel sends a prompt to a specific model
	CompleteWithModel(ctx context.Context, model, prompt string, maxTokens int) (string, Usage, error)
	// WritingModel returns the model string configured for the writing stage
	WritingModel() string
}
