package ingestion

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/config"
	"github.com/advrag/ragd/internal/store"
)

type fakeCaptioner struct {
	caption string
	err     error
	gotMime string
}

func (f *fakeCaptioner) CaptionImage(_ context.Context, mimeType string, _ []byte, _ string) (string, error) {
	f.gotMime = mimeType
	return f.caption, f.err
}

func newTestService(t *testing.T, captioner *fakeCaptioner) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	cfg := config.FilesConfig{
		Dir:              t.TempDir(),
		AllowedTypes:     []string{"text/plain", "application/pdf"},
		MaxSizeMB:        1,
		DefaultChunkSize: 512000,
	}
	if captioner == nil {
		return NewService(cfg, store.New(mock), nil, zap.NewNop()), mock
	}
	return NewService(cfg, store.New(mock), captioner, zap.NewNop()), mock
}

func expectCreateAssetRow(t *testing.T, mock pgxmock.PgxPoolIface, projectID, assetID int) {
	t.Helper()
	mock.ExpectQuery(`INSERT INTO assets`).
		WithArgs(projectID, store.AssetTypeFile, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"asset_id", "asset_project_id", "asset_type", "asset_name", "asset_size", "asset_config", "created_at",
		}).AddRow(assetID, projectID, store.AssetTypeFile, "stored_name.txt", int64(5), map[string]any{}, time.Now()))
}

func TestSaveUploadText(t *testing.T) {
	svc, mock := newTestService(t, nil)
	expectCreateAssetRow(t, mock, 1, 42)

	res, err := svc.SaveUpload(context.Background(), 1, "notes file.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "notes file.txt", res.OriginalFilename)
	assert.Equal(t, 42, res.AssetID)

	// The stored file exists under the project directory.
	entries, err := os.ReadDir(filepath.Join(svc.cfg.Dir, "1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_notes_file.txt"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUploadRejectsType(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.SaveUpload(context.Background(), 1, "x.exe", "application/octet-stream", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrFileTypeNotAllowed)
}

func TestSaveUploadRejectsOversize(t *testing.T) {
	svc, _ := newTestService(t, nil)

	big := strings.NewReader(strings.Repeat("a", 1<<20+1))
	_, err := svc.SaveUpload(context.Background(), 1, "big.txt", "text/plain", big)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// Partial file must not be left behind.
	entries, err := os.ReadDir(filepath.Join(svc.cfg.Dir, "1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveUploadImageWritesCaptionSidecar(t *testing.T) {
	cap := &fakeCaptioner{caption: "a red bicycle"}
	svc, mock := newTestService(t, cap)
	expectCreateAssetRow(t, mock, 3, 7)

	_, err := svc.SaveUpload(context.Background(), 3, "bike.png", "image/png", strings.NewReader("pngdata"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", cap.gotMime)

	entries, err := os.ReadDir(filepath.Join(svc.cfg.Dir, "3"))
	require.NoError(t, err)

	var sidecarPath string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".caption.json") {
			sidecarPath = filepath.Join(svc.cfg.Dir, "3", e.Name())
		}
	}
	require.NotEmpty(t, sidecarPath, "caption sidecar not written")

	data, err := os.ReadFile(sidecarPath)
	require.NoError(t, err)
	var sidecar captionSidecar
	require.NoError(t, json.Unmarshal(data, &sidecar))
	assert.Equal(t, "a red bicycle", sidecar.Caption)
	assert.Equal(t, "bike.png", sidecar.Metadata["source_file"])
	assert.Equal(t, "image_caption_upload", sidecar.Metadata["type"])
}

func TestLoadContentText(t *testing.T) {
	svc, _ := newTestService(t, nil)
	dir, err := svc.ProjectDir(5)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("line one\nline two"), 0o644))

	docs, err := svc.LoadContent(context.Background(), 5, "doc.txt")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "line one\nline two", docs[0].PageContent)
	assert.Equal(t, "doc.txt", docs[0].Metadata["source"])
}

func TestLoadContentImageSidecar(t *testing.T) {
	svc, _ := newTestService(t, nil)
	dir, err := svc.ProjectDir(5)
	require.NoError(t, err)

	sidecar := captionSidecar{
		Caption:  "a chart of sales",
		Metadata: map[string]any{"source_file": "chart.png"},
	}
	payload, err := json.Marshal(sidecar)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chart.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chart.png.caption.json"), payload, 0o644))

	docs, err := svc.LoadContent(context.Background(), 5, "chart.png")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a chart of sales", docs[0].PageContent)
	assert.Equal(t, "image_caption_sidecar", docs[0].Metadata["type"])
}

func TestLoadContentImageWithoutSidecar(t *testing.T) {
	svc, _ := newTestService(t, nil)
	dir, err := svc.ProjectDir(5)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.jpg"), []byte("jpg"), 0o644))

	docs, err := svc.LoadContent(context.Background(), 5, "plain.jpg")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUniqueFilename(t *testing.T) {
	name := uniqueFilename("my report (final).pdf")
	parts := strings.SplitN(name, "_", 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 16)
	assert.Equal(t, "my_report_final.pdf", parts[1])

	// Path components are stripped.
	assert.True(t, strings.HasSuffix(uniqueFilename("../../etc/passwd"), "_passwd"))

	// Two calls never collide.
	assert.NotEqual(t, uniqueFilename("a.txt"), uniqueFilename("a.txt"))
}

func TestChunkTextAccumulatesLines(t *testing.T) {
	docs := []Document{{
		PageContent: "alpha line\nbeta line\n\nx\ngamma line",
		Metadata:    map[string]any{"source": "doc.txt"},
	}}

	chunks := ChunkText(docs, 25)
	require.Len(t, chunks, 2)
	assert.Equal(t, "alpha line\nbeta line", chunks[0].PageContent)
	assert.Equal(t, "gamma line", chunks[1].PageContent)
	assert.Equal(t, "doc.txt", chunks[0].Metadata["source"])
}

func TestChunkTextLongLineBecomesOwnChunk(t *testing.T) {
	long := strings.Repeat("x", 100)
	docs := []Document{{PageContent: "short line\n" + long}}

	chunks := ChunkText(docs, 30)
	require.Len(t, chunks, 2)
	assert.Equal(t, "short line", chunks[0].PageContent)
	assert.Equal(t, long, chunks[1].PageContent)
}

func TestChunkTextDropsShortLines(t *testing.T) {
	docs := []Document{{PageContent: "\n \na\n-\nreal content here"}}

	chunks := ChunkText(docs, 1000)
	require.Len(t, chunks, 1)
	assert.Equal(t, "real content here", chunks[0].PageContent)
}

func TestChunkTextMetadataIsolated(t *testing.T) {
	docs := []Document{{
		PageContent: "aa\nbb",
		Metadata:    map[string]any{"source": "s"},
	}}

	chunks := ChunkText(docs, 3)
	require.Len(t, chunks, 2)
	chunks[0].Metadata["source"] = "mutated"
	assert.Equal(t, "s", chunks[1].Metadata["source"])
}
