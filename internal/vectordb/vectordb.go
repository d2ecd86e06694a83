// Package vectordb abstracts vector storage behind a Provider interface
// with Qdrant and pgvector implementations. Embeddings are computed by the
// caller; providers only store and search vectors.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Sentinel errors shared by all providers.
var (
	ErrInvalidConfig         = errors.New("invalid vector db config")
	ErrInvalidCollectionName = errors.New("invalid collection name")
	ErrCollectionNotFound    = errors.New("collection not found")
	ErrConnectionFailed      = errors.New("vector db connection failed")
)

// collectionNamePattern rejects anything that could not be a safe SQL
// identifier or Qdrant collection name.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,63}$`)

// ValidateCollectionName checks a collection name against the allowed
// pattern. Names are interpolated into SQL identifiers by the pgvector
// provider, so validation is a hard requirement, not a convention.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_]{1,63}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// CollectionName derives the canonical per-project collection name. The
// embedding size is part of the name so switching embedding models starts
// a fresh collection instead of mixing incompatible vectors.
func CollectionName(embeddingSize int, projectUUID uuid.UUID) string {
	return fmt.Sprintf("collection_%d_%s", embeddingSize, strings.ReplaceAll(projectUUID.String(), "-", "_"))
}

// Record is one stored vector with its source text and metadata.
type Record struct {
	Text     string
	Metadata map[string]any
	Vector   []float32
}

// SearchResult is one similarity hit. Higher scores are better for both
// distance methods.
type SearchResult struct {
	Text     string         `json:"text"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CollectionInfo describes a collection for the info endpoint.
type CollectionInfo struct {
	Name        string `json:"name"`
	RecordCount int    `json:"record_count"`
	VectorSize  int    `json:"vector_size"`
}

// Provider is the storage interface the indexing and RAG services depend
// on. Implementations must validate collection names on every call.
type Provider interface {
	// CreateCollection ensures a collection with the given vector size
	// exists. With reset true any existing collection is dropped first.
	CreateCollection(ctx context.Context, name string, vectorSize int, reset bool) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// CollectionInfo returns metadata about a collection, or
	// ErrCollectionNotFound.
	CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// DeleteCollection drops a collection. Deleting a missing collection
	// is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// InsertMany stores records carrying precomputed vectors.
	InsertMany(ctx context.Context, name string, records []Record) error

	// Search returns the limit nearest records to the query vector.
	Search(ctx context.Context, name string, vector []float32, limit int) ([]SearchResult, error)

	// Close releases provider resources.
	Close() error
}
