package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient wraps the OpenAI API for completions and embeddings.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// OpenAIConfig holds OpenAI client configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // default: gpt-4o-mini
	BaseURL string // optional custom endpoint
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// GetModel returns the configured model name.
func (c *OpenAIClient) GetModel() string { return c.model }

// Complete sends a single-turn chat completion and returns the response text.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed generates a vector embedding for the given text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.SmallEmbedding3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: no embedding data")
	}
	return resp.Data[0].Embedding, nil
}
