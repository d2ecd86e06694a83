package vectordb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var pgvectorTracer = otel.Tracer("ragd.vectordb.pgvector")

// PgQuerier is the pgx surface the pgvector provider needs. Satisfied by
// pgxpool.Pool and by pgxmock in tests.
type PgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PgvectorConfig tunes the pgvector provider.
type PgvectorConfig struct {
	// DistanceMethod is "cosine" or "dot".
	DistanceMethod string

	// IndexThreshold is the row count at which an ivfflat index is
	// created. Below it sequential scan is exact and fast enough.
	IndexThreshold int
}

// PgvectorProvider implements Provider on the main Postgres instance,
// one table per collection. Collection names pass ValidateCollectionName
// before being interpolated as identifiers.
type PgvectorProvider struct {
	db     PgQuerier
	config PgvectorConfig
	logger *zap.Logger
}

// NewPgvectorProvider wraps an existing pgx pool. The pgvector extension
// is installed by migrations before any provider call.
func NewPgvectorProvider(db PgQuerier, config PgvectorConfig, logger *zap.Logger) (*PgvectorProvider, error) {
	switch config.DistanceMethod {
	case "cosine", "dot":
	default:
		return nil, fmt.Errorf("%w: unknown distance method %q", ErrInvalidConfig, config.DistanceMethod)
	}
	if config.IndexThreshold <= 0 {
		config.IndexThreshold = 100
	}
	return &PgvectorProvider{db: db, config: config, logger: logger}, nil
}

// Close is a no-op: the pool is owned by the caller.
func (p *PgvectorProvider) Close() error { return nil }

// CreateCollection creates the backing table, dropping any existing one
// when reset is requested.
func (p *PgvectorProvider) CreateCollection(ctx context.Context, name string, vectorSize int, reset bool) error {
	ctx, span := pgvectorTracer.Start(ctx, "PgvectorProvider.CreateCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("vector_size", vectorSize),
		attribute.Bool("reset", reset),
	)

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if vectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}

	if reset {
		if _, err := p.db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
			return fmt.Errorf("drop collection table: %w", err)
		}
	}

	_, err := p.db.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
		    id BIGSERIAL PRIMARY KEY,
		    text TEXT NOT NULL,
		    metadata JSONB,
		    embedding vector(%d)
		)`, name, vectorSize))
	if err != nil {
		return fmt.Errorf("create collection table: %w", err)
	}
	return nil
}

// CollectionExists checks for the backing table.
func (p *PgvectorProvider) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	var exists bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM information_schema.tables
		    WHERE table_schema = 'public' AND table_name = $1
		 )`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check collection table: %w", err)
	}
	return exists, nil
}

// ListCollections returns collection tables, identified by prefix.
func (p *PgvectorProvider) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := p.db.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_name LIKE 'collection\_%'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list collection tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan collection name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// CollectionInfo returns row count and declared vector dimension.
func (p *PgvectorProvider) CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	exists, err := p.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCollectionNotFound
	}

	info := &CollectionInfo{Name: name}
	if err := p.db.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, name)).Scan(&info.RecordCount); err != nil {
		return nil, fmt.Errorf("count collection rows: %w", err)
	}
	// atttypmod carries the declared dimension for vector columns.
	if err := p.db.QueryRow(ctx,
		`SELECT a.atttypmod FROM pg_attribute a
		 JOIN pg_class c ON c.oid = a.attrelid
		 WHERE c.relname = $1 AND a.attname = 'embedding'`, name).Scan(&info.VectorSize); err != nil {
		return nil, fmt.Errorf("read vector size: %w", err)
	}
	return info, nil
}

// DeleteCollection drops the backing table if present.
func (p *PgvectorProvider) DeleteCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if _, err := p.db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
		return fmt.Errorf("drop collection table: %w", err)
	}
	return nil
}

// InsertMany writes records in one batch, then creates the ivfflat index
// once the collection is large enough to benefit from it.
func (p *PgvectorProvider) InsertMany(ctx context.Context, name string, records []Record) error {
	ctx, span := pgvectorTracer.Start(ctx, "PgvectorProvider.InsertMany")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("record_count", len(records)),
	)

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s (text, metadata, embedding) VALUES ($1, $2, $3)`, name)
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertSQL, r.Text, r.Metadata, pgvector.NewVector(r.Vector))
	}
	results := p.db.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert record: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := p.maybeCreateIndex(ctx, name); err != nil {
		// The data is stored; a failed index build only costs query speed.
		p.logger.Warn("ivfflat index creation failed",
			zap.String("collection", name),
			zap.Error(err))
	}
	return nil
}

// maybeCreateIndex builds the approximate index once row count crosses
// the configured threshold. Idempotent via IF NOT EXISTS.
func (p *PgvectorProvider) maybeCreateIndex(ctx context.Context, name string) error {
	var count int
	if err := p.db.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, name)).Scan(&count); err != nil {
		return fmt.Errorf("count rows: %w", err)
	}
	if count < p.config.IndexThreshold {
		return nil
	}

	ops := "vector_cosine_ops"
	if p.config.DistanceMethod == "dot" {
		ops = "vector_ip_ops"
	}
	_, err := p.db.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING ivfflat (embedding %s)`,
		name, name, ops))
	if err != nil {
		return fmt.Errorf("create ivfflat index: %w", err)
	}
	p.logger.Info("ivfflat index ensured",
		zap.String("collection", name),
		zap.Int("rows", count))
	return nil
}

// Search orders by the configured distance operator. Scores are mapped so
// higher is always better: 1-distance for cosine, negated inner product
// for dot.
func (p *PgvectorProvider) Search(ctx context.Context, name string, vector []float32, limit int) ([]SearchResult, error) {
	ctx, span := pgvectorTracer.Start(ctx, "PgvectorProvider.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("limit", limit),
	)

	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var query string
	switch p.config.DistanceMethod {
	case "dot":
		query = fmt.Sprintf(
			`SELECT text, metadata, -(embedding <#> $1) AS score
			 FROM %s ORDER BY embedding <#> $1 LIMIT $2`, name)
	default:
		query = fmt.Sprintf(
			`SELECT text, metadata, 1 - (embedding <=> $1) AS score
			 FROM %s ORDER BY embedding <=> $1 LIMIT $2`, name)
	}

	rows, err := p.db.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("search collection: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Text, &r.Metadata, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

var _ Provider = (*PgvectorProvider)(nil)
