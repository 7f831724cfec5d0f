package llm

import (
	"context"
	"errors"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicClient wraps the Anthropic Messages API for completions.
// Anthropic does not provide an embeddings endpoint, so this client only
// implements TextGenerator.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// AnthropicConfig holds Anthropic client configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // default: claude-3-5-haiku-20241022
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-20241022"
	}
	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey),
		model:  model,
	}
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string { return c.model }

// Complete sends a single-turn message and returns the response text.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: completion failed: %w", err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return "", errors.New("anthropic: no response content")
	}
	return *resp.Content[0].Text, nil
}
