// Package admin implements the destructive full-reset operation: wipe
// uploaded files and drop every application table so the next startup
// migrates a pristine database.
package admin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/ingestion"
	"github.com/advrag/ragd/internal/store"
)

// coreTables are the static application tables removed by a nuke. User
// accounts survive so logins keep working after the rebuild.
var coreTables = []string{"projects", "project_access", "assets", "chunks", "chat_histories", "schema_migrations"}

// Result reports what a nuke removed.
type Result struct {
	Status         string   `json:"status"`
	ClearedFiles   bool     `json:"asset_directory_cleared"`
	DroppedTables  []string `json:"database_tables_dropped"`
	RestartMessage string   `json:"next_step"`
}

// Service performs the nuke.
type Service struct {
	db     store.Querier
	files  *ingestion.Service
	logger *zap.Logger
}

// NewService wires the admin reset.
func NewService(db store.Querier, files *ingestion.Service, logger *zap.Logger) *Service {
	return &Service{db: db, files: files, logger: logger}
}

// NukeAndRebuild deletes all uploaded files, then drops the core tables,
// every ETL pgdata_* table, and every pgvector collection_* table. The
// application must be restarted afterwards so migrations recreate the
// schema.
func (s *Service) NukeAndRebuild(ctx context.Context) (*Result, error) {
	if err := s.files.RemoveAllFiles(); err != nil {
		return nil, fmt.Errorf("clear asset directory: %w", err)
	}
	s.logger.Warn("asset directory cleared")

	rows, err := s.db.Query(ctx,
		`SELECT tablename FROM pg_tables
		 WHERE schemaname = 'public' AND (
		     tablename LIKE 'pgdata\_%' OR
		     tablename LIKE 'collection\_%' OR
		     tablename = ANY($1)
		 )`, coreTables)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dropped := make([]string, 0, len(tables))
	for _, table := range tables {
		if _, err := s.db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q CASCADE`, table)); err != nil {
			s.logger.Error("dropping table failed",
				zap.String("table", table),
				zap.Error(err))
			continue
		}
		s.logger.Warn("table dropped", zap.String("table", table))
		dropped = append(dropped, table)
	}

	return &Result{
		Status:         "System data wipe complete.",
		ClearedFiles:   true,
		DroppedTables:  dropped,
		RestartMessage: "Restart the application so migrations recreate the core tables.",
	}, nil
}
