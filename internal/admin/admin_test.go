package admin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/config"
	"github.com/advrag/ragd/internal/ingestion"
	"github.com/advrag/ragd/internal/store"
)

func TestNukeAndRebuild(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	dir := t.TempDir()
	filesDir := filepath.Join(dir, "files")
	require.NoError(t, os.MkdirAll(filepath.Join(filesDir, "1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(filesDir, "1", "doc.txt"), []byte("x"), 0o644))

	st := store.New(mock)
	files := ingestion.NewService(config.FilesConfig{Dir: filesDir, MaxSizeMB: 1}, st, nil, zap.NewNop())
	svc := NewService(mock, files, zap.NewNop())

	mock.ExpectQuery(`SELECT tablename FROM pg_tables`).
		WithArgs(coreTables).
		WillReturnRows(pgxmock.NewRows([]string{"tablename"}).
			AddRow("projects").
			AddRow("pgdata_proj1_asset2_sheet1").
			AddRow("collection_1536_abc"))
	mock.ExpectExec(`DROP TABLE IF EXISTS "projects" CASCADE`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS "pgdata_proj1_asset2_sheet1" CASCADE`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS "collection_1536_abc" CASCADE`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))

	res, err := svc.NukeAndRebuild(context.Background())
	require.NoError(t, err)
	assert.True(t, res.ClearedFiles)
	assert.Equal(t, []string{"projects", "pgdata_proj1_asset2_sheet1", "collection_1536_abc"}, res.DroppedTables)

	_, statErr := os.Stat(filesDir)
	assert.True(t, os.IsNotExist(statErr), "files directory must be removed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The wipe scope and the migrations are coupled: schema_migrations must
// go so the next boot replays the schema, and users must stay so admins
// can log back in. The replay side is covered in internal/postgres.
func TestNukeScopeKeepsUsers(t *testing.T) {
	assert.Contains(t, coreTables, "schema_migrations")
	assert.NotContains(t, coreTables, "users")
}

func TestNukeContinuesPastDropFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st := store.New(mock)
	files := ingestion.NewService(config.FilesConfig{Dir: t.TempDir(), MaxSizeMB: 1}, st, nil, zap.NewNop())
	svc := NewService(mock, files, zap.NewNop())

	mock.ExpectQuery(`SELECT tablename FROM pg_tables`).
		WithArgs(coreTables).
		WillReturnRows(pgxmock.NewRows([]string{"tablename"}).
			AddRow("chunks").
			AddRow("assets"))
	mock.ExpectExec(`DROP TABLE IF EXISTS "chunks" CASCADE`).
		WillReturnError(assert.AnError)
	mock.ExpectExec(`DROP TABLE IF EXISTS "assets" CASCADE`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))

	res, err := svc.NukeAndRebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"assets"}, res.DroppedTables)
}
