package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// generator adapts an llms.Model to the Generator interface.
type generator struct {
	model       llms.Model
	maxTokens   int
	temperature float64
}

func (g *generator) GenerateText(ctx context.Context, prompt Prompt) (string, error) {
	var messages []llms.MessageContent
	if prompt.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, prompt.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt.User))

	resp, err := g.model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(g.maxTokens),
		llms.WithTemperature(g.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
