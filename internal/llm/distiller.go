package llm

import (
	"context"
	"fmt"
	"strings"
)

const distillPrompt = `You maintain the rolling memory of a daily-logging conversation.
Rewrite the notes below as a compact summary. Keep every concrete fact:
event types, times, people, places, amounts, and unresolved questions.
Drop greetings, repetition, and filler. Respond with the summary only.

Notes:
%s`

// SummaryDistiller compresses a session's rolling turn summary through a
// text generator.
type SummaryDistiller struct {
	generator TextGenerator
}

// NewSummaryDistiller creates a distiller around a text generator.
func NewSummaryDistiller(generator TextGenerator) *SummaryDistiller {
	return &SummaryDistiller{generator: generator}
}

// Compress rewrites the summary as a shorter one. An empty summary is
// returned unchanged without a model call.
func (d *SummaryDistiller) Compress(ctx context.Context, summary string) (string, error) {
	if strings.TrimSpace(summary) == "" {
		return summary, nil
	}
	out, err := d.generator.Complete(ctx, fmt.Sprintf(distillPrompt, summary))
	if err != nil {
		return "", fmt.Errorf("llm: distillation failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}
