package llm

import (
	"context"
	"fmt"
	"strings"
)

// embedderClient matches langchaingo's embeddings.EmbedderClient, which
// the openai, googleai, and mistral clients all implement.
type embedderClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type embedder struct {
	client   embedderClient
	size     int
	maxChars int
}

// EmbedTexts embeds texts, truncating each to the configured character
// budget first so oversized chunks cannot blow the provider's token
// limit.
func (e *embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = e.prepare(t)
	}

	vectors, err := e.client.CreateEmbedding(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(vectors))
	}
	return vectors, nil
}

func (e *embedder) Size() int {
	return e.size
}

func (e *embedder) prepare(text string) string {
	text = strings.TrimSpace(text)
	if e.maxChars > 0 && len(text) > e.maxChars {
		text = text[:e.maxChars]
	}
	return text
}
