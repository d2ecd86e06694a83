package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InsertChunks writes processed chunks in a single batch round trip and
// returns the number inserted.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(
			`INSERT INTO chunks (chunk_text, chunk_metadata, chunk_order, chunk_project_id, chunk_asset_id)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.Text, c.Metadata, c.Order, c.ProjectID, c.AssetID)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range chunks {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("insert chunk: %w", err)
		}
	}
	return len(chunks), nil
}

// ListChunks returns a page of a project's chunks ordered by id. Used by
// the indexer to stream chunks into the vector store.
func (s *Store) ListChunks(ctx context.Context, projectID, limit, offset int) ([]Chunk, error) {
	rows, err := s.db.Query(ctx,
		`SELECT chunk_id, chunk_text, chunk_metadata, chunk_order, chunk_project_id, chunk_asset_id
		 FROM chunks WHERE chunk_project_id = $1
		 ORDER BY chunk_id
		 LIMIT $2 OFFSET $3`,
		projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.Text, &c.Metadata, &c.Order, &c.ProjectID, &c.AssetID); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CountChunks returns the number of stored chunks for a project.
func (s *Store) CountChunks(ctx context.Context, projectID int) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM chunks WHERE chunk_project_id = $1`, projectID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// DeleteChunksByProject removes all chunks of a project, returning the
// number deleted. Used when a re-upload resets project data.
func (s *Store) DeleteChunksByProject(ctx context.Context, projectID int) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM chunks WHERE chunk_project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteChunksByAsset removes the chunks produced from one asset.
func (s *Store) DeleteChunksByAsset(ctx context.Context, assetID int) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM chunks WHERE chunk_asset_id = $1`, assetID)
	if err != nil {
		return 0, fmt.Errorf("delete asset chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}
