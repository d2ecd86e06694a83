package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/cohere"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/advrag/ragd/internal/config"
)

// NewGenerator builds the text generation client for the configured
// backend. OPENROUTER and GROQ speak the OpenAI wire protocol, so they
// share the openai client with a different base URL and token.
func NewGenerator(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	model, err := newChatModel(ctx, cfg.GenerationBackend, cfg.GenerationModelID, cfg)
	if err != nil {
		return nil, fmt.Errorf("generation backend %s: %w", cfg.GenerationBackend, err)
	}
	return &generator{
		model:       model,
		maxTokens:   cfg.MaxOutputTokens,
		temperature: cfg.Temperature,
	}, nil
}

// NewEmbedder builds the embedding client. COHERE is rejected at config
// validation since its client has no embedding endpoint.
func NewEmbedder(ctx context.Context, cfg config.LLMConfig) (Embedder, error) {
	var (
		client embedderClient
		err    error
	)
	switch cfg.EmbeddingBackend {
	case config.ProviderOpenAI:
		client, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey.Value()),
			openai.WithBaseURL(cfg.OpenAIAPIURL),
			openai.WithEmbeddingModel(cfg.EmbeddingModelID),
		)
	case config.ProviderOpenRouter:
		client, err = openai.New(
			openai.WithToken(cfg.OpenRouterAPIKey.Value()),
			openai.WithBaseURL(cfg.OpenRouterAPIURL),
			openai.WithEmbeddingModel(cfg.EmbeddingModelID),
		)
	case config.ProviderGoogle:
		client, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.GoogleAPIKey.Value()),
			googleai.WithDefaultEmbeddingModel(cfg.EmbeddingModelID),
		)
	case config.ProviderMistralVision:
		client, err = mistral.New(
			mistral.WithAPIKey(cfg.MistralAPIKey.Value()),
			mistral.WithModel(cfg.EmbeddingModelID),
		)
	default:
		return nil, fmt.Errorf("%w: %s for embeddings", ErrUnsupportedBackend, cfg.EmbeddingBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("embedding backend %s: %w", cfg.EmbeddingBackend, err)
	}
	return &embedder{
		client:   client,
		size:     cfg.EmbeddingModelSize,
		maxChars: cfg.InputMaxCharacters,
	}, nil
}

// NewCaptioner builds the vision client used for image captioning.
func NewCaptioner(ctx context.Context, cfg config.LLMConfig) (Captioner, error) {
	switch cfg.VisionBackend {
	case config.ProviderOpenAI, config.ProviderGoogle, config.ProviderMistralVision:
	default:
		return nil, fmt.Errorf("%w: %s for vision", ErrUnsupportedBackend, cfg.VisionBackend)
	}
	model, err := newChatModel(ctx, cfg.VisionBackend, cfg.VisionModelID, cfg)
	if err != nil {
		return nil, fmt.Errorf("vision backend %s: %w", cfg.VisionBackend, err)
	}
	return &captioner{
		model:     model,
		maxTokens: cfg.MaxOutputTokens,
	}, nil
}

func newChatModel(ctx context.Context, backend, modelID string, cfg config.LLMConfig) (llms.Model, error) {
	switch backend {
	case config.ProviderOpenAI:
		return openai.New(
			openai.WithToken(cfg.OpenAIAPIKey.Value()),
			openai.WithBaseURL(cfg.OpenAIAPIURL),
			openai.WithModel(modelID),
		)
	case config.ProviderOpenRouter:
		return openai.New(
			openai.WithToken(cfg.OpenRouterAPIKey.Value()),
			openai.WithBaseURL(cfg.OpenRouterAPIURL),
			openai.WithModel(modelID),
		)
	case config.ProviderGroq:
		return openai.New(
			openai.WithToken(cfg.GroqAPIKey.Value()),
			openai.WithBaseURL(cfg.GroqAPIURL),
			openai.WithModel(modelID),
		)
	case config.ProviderCohere:
		return cohere.New(
			cohere.WithToken(cfg.CohereAPIKey.Value()),
			cohere.WithModel(modelID),
		)
	case config.ProviderGoogle:
		return googleai.New(ctx,
			googleai.WithAPIKey(cfg.GoogleAPIKey.Value()),
			googleai.WithDefaultModel(modelID),
		)
	case config.ProviderMistralVision:
		return mistral.New(
			mistral.WithAPIKey(cfg.MistralAPIKey.Value()),
			mistral.WithModel(modelID),
		)
	default:
		return nil, ErrUnsupportedBackend
	}
}
