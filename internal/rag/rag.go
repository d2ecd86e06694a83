// Package rag answers questions over a project's indexed documents. The
// pipeline runs intent classification, retrieval, synthesis, and a final
// moderation pass. When retrieval surfaces a table schema document the
// synthesis phase additionally generates and executes a read-only SQL
// query against the loaded tabular data.
package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/ingestion"
	"github.com/advrag/ragd/internal/llm"
	"github.com/advrag/ragd/internal/llm/templates"
	"github.com/advrag/ragd/internal/store"
	"github.com/advrag/ragd/internal/vectordb"
)

// Canned answers for pipeline short circuits.
const (
	AnswerViolation = "I can only answer questions related to the provided documents."
	AnswerNoResults = "I'm sorry, I couldn't find any information related to your question."
)

// promptGroup is the template group holding all pipeline prompts.
const promptGroup = "rag"

var nonLetterPattern = regexp.MustCompile(`[^a-zA-Z_]`)

// Answer is the outcome of one pipeline run. FullAnswer carries the
// visible thinking block, Answer the clean text after it.
type Answer struct {
	FullAnswer string
	Answer     string
}

// Service runs the question answering pipeline.
type Service struct {
	generator llm.Generator
	embedder  llm.Embedder
	vdb       vectordb.Provider
	templates *templates.Parser
	store     *store.Store
	logger    *zap.Logger
}

// NewService wires the pipeline. Generated SQL runs through the store's
// connection.
func NewService(generator llm.Generator, embedder llm.Embedder, vdb vectordb.Provider, tmpl *templates.Parser, st *store.Store, logger *zap.Logger) *Service {
	return &Service{
		generator: generator,
		embedder:  embedder,
		vdb:       vdb,
		templates: tmpl,
		store:     st,
		logger:    logger,
	}
}

// SearchCollection embeds the query and returns the nearest documents
// from the project's collection.
func (s *Service) SearchCollection(ctx context.Context, project *store.Project, query string, limit int) ([]vectordb.SearchResult, error) {
	collection := vectordb.CollectionName(s.embedder.Size(), project.UUID)
	vectors, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		s.logger.Warn("query produced no embedding", zap.String("query", query))
		return nil, nil
	}
	return s.vdb.Search(ctx, collection, vectors[0], limit)
}

// AnswerQuestion runs the full pipeline. When chatUUID is non-nil the
// question and final answer are appended to that conversation.
func (s *Service) AnswerQuestion(ctx context.Context, project *store.Project, query string, limit int, chatUUID *uuid.UUID, userID *int) (*Answer, error) {
	if limit <= 0 {
		limit = 10
	}

	answer, err := s.answer(ctx, project, query, limit)
	if err != nil {
		return nil, err
	}

	if chatUUID != nil {
		s.recordChat(ctx, project, *chatUUID, userID, query, answer.Answer)
	}
	return answer, nil
}

func (s *Service) answer(ctx context.Context, project *store.Project, query string, limit int) (*Answer, error) {
	// Phase 1: intent classification.
	intent, err := s.classifyIntent(ctx, query)
	if err != nil {
		return nil, err
	}
	if intent == "violation" {
		s.logger.Warn("query classified as violation", zap.String("query", query))
		return &Answer{FullAnswer: AnswerViolation, Answer: AnswerViolation}, nil
	}

	// Phase 2: retrieval.
	docs, err := s.SearchCollection(ctx, project, query, limit)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	if len(docs) == 0 {
		return &Answer{FullAnswer: AnswerNoResults, Answer: AnswerNoResults}, nil
	}

	// Phase 3: synthesis.
	draft, err := s.synthesize(ctx, query, docs)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}

	// Phase 4: moderation. The moderated answer replaces the draft's
	// clean part; the thinking block stays visible.
	moderated, err := s.moderate(ctx, query, draft)
	if err != nil {
		return nil, fmt.Errorf("moderation: %w", err)
	}

	full := moderated
	if idx := strings.Index(draft, "</think>"); idx >= 0 {
		full = draft[:idx] + "</think>" + moderated
	}
	return &Answer{FullAnswer: full, Answer: moderated}, nil
}

// classifyIntent reduces the model's response to a bare category word.
func (s *Service) classifyIntent(ctx context.Context, query string) (string, error) {
	prompt, err := s.templates.Get(promptGroup, "intent_classification_prompt", map[string]string{
		"question": query,
	})
	if err != nil {
		return "", err
	}
	response, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("intent classification: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(nonLetterPattern.ReplaceAllString(response, ""))), nil
}

// synthesize builds the draft answer. A retrieved table schema document
// switches to the hybrid SQL path; otherwise the text documents alone are
// synthesized. The returned draft carries a thinking block describing the
// steps taken.
func (s *Service) synthesize(ctx context.Context, query string, docs []vectordb.SearchResult) (string, error) {
	var schemaDoc *vectordb.SearchResult
	var textDocs []vectordb.SearchResult
	for i := range docs {
		if docType, _ := docs[i].Metadata[ingestion.MetaKeyType].(string); docType == ingestion.MetaTypeTableSchema {
			if schemaDoc == nil {
				schemaDoc = &docs[i]
			}
			continue
		}
		textDocs = append(textDocs, docs[i])
	}

	texts := make([]string, len(textDocs))
	for i, d := range textDocs {
		texts[i] = d.Text
	}
	textContext := strings.Join(texts, "\n---\n")

	var (
		raw           string
		thinkingParts []string
	)

	if schemaDoc != nil {
		s.logger.Info("hybrid answer path triggered")
		sqlResults, generatedSQL := s.executeSchemaQuery(ctx, query, schemaDoc.Text)
		if textContext == "" {
			textContext = "No additional text information was found."
		}

		prompt, err := s.templates.Get(promptGroup, "hybrid_synthesis_prompt", map[string]string{
			"question":       query,
			"sql_results":    sqlResults,
			"text_documents": textContext,
		})
		if err != nil {
			return "", err
		}
		raw, err = s.generator.GenerateText(ctx, prompt)
		if err != nil {
			return "", err
		}

		if generatedSQL == "" {
			generatedSQL = "N/A"
		}
		thinkingParts = append(thinkingParts,
			"Hybrid mode triggered. Most relevant schema found.",
			fmt.Sprintf("Generated SQL:\n```sql\n%s\n```", generatedSQL),
			fmt.Sprintf("SQL Query Results:\n%s", sqlResults),
			fmt.Sprintf("Synthesizing with %d additional text document(s).", len(textDocs)),
		)
	} else {
		s.logger.Info("text answer path triggered")
		prompt, err := s.templates.Get(promptGroup, "text_synthesis_prompt", map[string]string{
			"question":       query,
			"text_documents": textContext,
		})
		if err != nil {
			return "", err
		}
		raw, err = s.generator.GenerateText(ctx, prompt)
		if err != nil {
			return "", err
		}
		thinkingParts = append(thinkingParts,
			fmt.Sprintf("Standard RAG mode triggered. Synthesizing with %d text document(s).", len(textDocs)))
	}

	thoughts, clean := llm.ParseThinking(raw)
	if thoughts != "" {
		thinkingParts = append(thinkingParts, fmt.Sprintf("\nLLM's Synthesis Reasoning:\n%s", thoughts))
	}

	return fmt.Sprintf("<think>\n%s\n</think>%s", strings.Join(thinkingParts, "\n"), clean), nil
}

func (s *Service) moderate(ctx context.Context, query, draft string) (string, error) {
	prompt, err := s.templates.Get(promptGroup, "answer_moderation_prompt", map[string]string{
		"question":     query,
		"draft_answer": draft,
	})
	if err != nil {
		return "", err
	}
	moderated, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(moderated), nil
}

func (s *Service) recordChat(ctx context.Context, project *store.Project, chatUUID uuid.UUID, userID *int, question, answer string) {
	for _, msg := range []store.ChatMessage{
		{ChatUUID: chatUUID, ProjectID: project.ID, UserID: userID, Role: store.ChatRoleUser, Content: question},
		{ChatUUID: chatUUID, ProjectID: project.ID, UserID: userID, Role: store.ChatRoleAssistant, Content: answer},
	} {
		if _, err := s.store.AppendChatMessage(ctx, msg); err != nil {
			s.logger.Error("recording chat message failed",
				zap.String("chat", chatUUID.String()),
				zap.Error(err))
			return
		}
	}
}
