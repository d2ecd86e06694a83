package vectordb

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/config"
)

// New builds the Provider selected by VECTOR_DB_BACKEND. The pgvector
// backend reuses the main database pool; the Qdrant backend dials its own
// gRPC connection.
func New(cfg config.VectorDBConfig, db PgQuerier, logger *zap.Logger) (Provider, error) {
	switch cfg.Backend {
	case config.VectorBackendQdrant:
		distance := qdrant.Distance_Cosine
		if cfg.DistanceMethod == config.DistanceDot {
			distance = qdrant.Distance_Dot
		}
		return NewQdrantProvider(QdrantConfig{
			Host:     cfg.QdrantHost,
			Port:     cfg.QdrantPort,
			Distance: distance,
		}, logger.Named("qdrant"))

	case config.VectorBackendPgvector:
		return NewPgvectorProvider(db, PgvectorConfig{
			DistanceMethod: cfg.DistanceMethod,
			IndexThreshold: cfg.PgvecIndexThreshold,
		}, logger.Named("pgvector"))

	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}
