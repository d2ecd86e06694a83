// Package llm builds generation, embedding, and vision clients on top of
// langchaingo. The backend for each capability is selected independently
// through configuration.
package llm

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	ErrUnsupportedBackend = errors.New("unsupported llm backend")
	ErrEmptyResponse      = errors.New("llm returned empty response")
)

// Prompt pairs a system instruction with a user message. A prompt with an
// empty System is sent as a plain user message.
type Prompt struct {
	System string
	User   string
}

// Generator produces text completions.
type Generator interface {
	GenerateText(ctx context.Context, prompt Prompt) (string, error)
}

// Embedder turns texts into vectors of a fixed size.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Size() int
}

// Captioner describes images, used to fold figures from uploaded
// documents into indexable text.
type Captioner interface {
	CaptionImage(ctx context.Context, mimeType string, data []byte, instruction string) (string, error)
}
