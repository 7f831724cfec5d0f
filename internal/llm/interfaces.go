// Package llm provides text-completion and embedding clients used for turn
// distillation and event similarity. The session core never requires an
// LLM: every caller degrades to a deterministic fallback when no provider
// is configured or a call fails.
package llm

import "context"

// TextGenerator is the interface for LLM text completion.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
