package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

type captioner struct {
	model     llms.Model
	maxTokens int
}

// CaptionImage sends the raw image bytes with an instruction and returns
// the model's description.
func (c *captioner) CaptionImage(ctx context.Context, mimeType string, data []byte, instruction string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image data is empty")
	}
	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(mimeType, data),
				llms.TextPart(instruction),
			},
		},
	}

	resp, err := c.model.GenerateContent(ctx, messages, llms.WithMaxTokens(c.maxTokens))
	if err != nil {
		return "", fmt.Errorf("caption image: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
