package llm

import "context"

// Options tune a single completion request.
type Options struct {
	Temperature     float64
	MaxOutputTokens int
}

// Completer turns a prompt into generated text. Implementations own their
// own transport, credentials and retry policy.
type Completer interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, opts Options) (string, error)

func (f CompleterFunc) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}
