// Package indexing streams stored chunks into the vector store and
// answers collection queries.
package indexing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/llm"
	"github.com/advrag/ragd/internal/store"
	"github.com/advrag/ragd/internal/vectordb"
)

// ErrNoChunks is returned by Push when a project has nothing to index.
var ErrNoChunks = errors.New("project has no processed chunks")

// pageSize bounds how many chunks are embedded per round trip.
const pageSize = 100

// Service indexes project chunks and searches the resulting collection.
type Service struct {
	store    *store.Store
	vdb      vectordb.Provider
	embedder llm.Embedder
	logger   *zap.Logger
}

// NewService wires the indexing pipeline.
func NewService(st *store.Store, vdb vectordb.Provider, embedder llm.Embedder, logger *zap.Logger) *Service {
	return &Service{store: st, vdb: vdb, embedder: embedder, logger: logger}
}

// Collection returns the canonical collection name for a project under
// the configured embedding model.
func (s *Service) Collection(project *store.Project) string {
	return vectordb.CollectionName(s.embedder.Size(), project.UUID)
}

// Push embeds all chunks of a project into its collection, paging through
// the chunk table. With reset true the collection is rebuilt from scratch.
// It returns the number of records inserted.
func (s *Service) Push(ctx context.Context, project *store.Project, reset bool) (int, error) {
	total, err := s.store.CountChunks(ctx, project.ID)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, ErrNoChunks
	}

	collection := s.Collection(project)
	if err := s.vdb.CreateCollection(ctx, collection, s.embedder.Size(), reset); err != nil {
		return 0, fmt.Errorf("create collection: %w", err)
	}

	inserted := 0
	for offset := 0; ; offset += pageSize {
		chunks, err := s.store.ListChunks(ctx, project.ID, pageSize, offset)
		if err != nil {
			return inserted, err
		}
		if len(chunks) == 0 {
			break
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return inserted, fmt.Errorf("embed chunks: %w", err)
		}

		records := make([]vectordb.Record, len(chunks))
		for i, c := range chunks {
			records[i] = vectordb.Record{
				Text:     c.Text,
				Metadata: c.Metadata,
				Vector:   vectors[i],
			}
		}
		if err := s.vdb.InsertMany(ctx, collection, records); err != nil {
			return inserted, fmt.Errorf("insert records: %w", err)
		}
		inserted += len(records)

		s.logger.Debug("indexed chunk page",
			zap.String("collection", collection),
			zap.Int("offset", offset),
			zap.Int("count", len(records)))
	}

	s.logger.Info("project indexed",
		zap.String("collection", collection),
		zap.Int("inserted", inserted))
	return inserted, nil
}

// Info returns collection metadata for a project.
func (s *Service) Info(ctx context.Context, project *store.Project) (*vectordb.CollectionInfo, error) {
	return s.vdb.CollectionInfo(ctx, s.Collection(project))
}

// Search embeds the query text and returns the nearest records.
func (s *Service) Search(ctx context.Context, project *store.Project, text string, limit int) ([]vectordb.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	vectors, err := s.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, errors.New("embedding returned no vectors")
	}
	return s.vdb.Search(ctx, s.Collection(project), vectors[0], limit)
}
