package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/store"
	"github.com/advrag/ragd/internal/tabular"
	"github.com/advrag/ragd/internal/vectordb"
)

// Chunk metadata keys and values used downstream by retrieval.
const (
	MetaKeyType        = "type"
	MetaKeySourceAsset = "source_asset_id"
	MetaKeyTableName   = "pgsql_table_name"

	MetaTypeTableSchema = "pgsql_table_schema"
)

// assetConfigTablesKey stores the tabular ETL output on the asset.
const assetConfigTablesKey = "pgsql_tables"

// ProcessResult summarizes one processing run.
type ProcessResult struct {
	InsertedChunks int `json:"inserted_chunks"`
	ProcessedFiles int `json:"processed_files"`
}

// Processor turns a project's uploaded assets into stored chunks. Tabular
// files additionally land in queryable Postgres tables, represented among
// the chunks by a schema description document.
type Processor struct {
	files         *Service
	tabular       *tabular.Loader
	store         *store.Store
	vdb           vectordb.Provider
	embeddingSize int
	chunkSize     int
	logger        *zap.Logger
}

// NewProcessor wires the processing pipeline.
func NewProcessor(files *Service, loader *tabular.Loader, st *store.Store, vdb vectordb.Provider, embeddingSize, chunkSize int, logger *zap.Logger) *Processor {
	return &Processor{
		files:         files,
		tabular:       loader,
		store:         st,
		vdb:           vdb,
		embeddingSize: embeddingSize,
		chunkSize:     chunkSize,
		logger:        logger,
	}
}

// ProcessProject chunks every asset of a project. With reset true all
// previous chunks, derived tables, and the vector collection are removed
// first, so the project can be rebuilt from its files alone. A positive
// chunkSize overrides the configured default for this run.
func (p *Processor) ProcessProject(ctx context.Context, project *store.Project, reset bool, chunkSize int) (*ProcessResult, error) {
	if chunkSize <= 0 {
		chunkSize = p.chunkSize
	}
	assets, err := p.store.ListAssets(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	if len(assets) == 0 {
		return &ProcessResult{}, nil
	}

	if reset {
		if err := p.resetProject(ctx, project, assets); err != nil {
			return nil, err
		}
	}

	result := &ProcessResult{}
	for i := range assets {
		asset := &assets[i]
		chunks, err := p.processAsset(ctx, project, asset, chunkSize)
		if err != nil {
			p.logger.Error("processing asset failed",
				zap.String("asset", asset.Name),
				zap.Error(err))
			continue
		}
		if len(chunks) == 0 {
			continue
		}

		inserted, err := p.store.InsertChunks(ctx, chunks)
		if err != nil {
			return nil, fmt.Errorf("insert chunks for %s: %w", asset.Name, err)
		}
		result.InsertedChunks += inserted
		result.ProcessedFiles++
	}
	return result, nil
}

// resetProject drops everything derived from previous processing runs.
func (p *Processor) resetProject(ctx context.Context, project *store.Project, assets []store.Asset) error {
	collection := vectordb.CollectionName(p.embeddingSize, project.UUID)
	if err := p.vdb.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}

	if _, err := p.store.DeleteChunksByProject(ctx, project.ID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	for i := range assets {
		for _, tableName := range assetTables(&assets[i]) {
			// Only names produced by the ETL are ever dropped.
			if !strings.HasPrefix(tableName, "pgdata_") {
				continue
			}
			if _, err := p.store.DB().Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q CASCADE`, tableName)); err != nil {
				p.logger.Warn("dropping derived table failed",
					zap.String("table", tableName),
					zap.Error(err))
			}
		}
	}
	return nil
}

func (p *Processor) processAsset(ctx context.Context, project *store.Project, asset *store.Asset, chunkSize int) ([]store.Chunk, error) {
	switch FileExtension(asset.Name) {
	case ExtCSV, ExtXLSX:
		return p.processTabularAsset(ctx, project, asset)
	default:
		return p.processTextAsset(ctx, project, asset, chunkSize)
	}
}

// processTextAsset covers txt, pdf, and captioned images.
func (p *Processor) processTextAsset(ctx context.Context, project *store.Project, asset *store.Asset, chunkSize int) ([]store.Chunk, error) {
	docs, err := p.files.LoadContent(ctx, project.ID, asset.Name)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	chunked := ChunkText(docs, chunkSize)
	chunks := make([]store.Chunk, 0, len(chunked))
	for i, doc := range chunked {
		chunks = append(chunks, store.Chunk{
			Text:      doc.PageContent,
			Metadata:  doc.Metadata,
			Order:     i + 1,
			ProjectID: project.ID,
			AssetID:   asset.ID,
		})
	}
	return chunks, nil
}

// processTabularAsset loads the file into Postgres tables and emits one
// schema description chunk per table, so retrieval can route questions
// about the data to SQL generation.
func (p *Processor) processTabularAsset(ctx context.Context, project *store.Project, asset *store.Asset) ([]store.Chunk, error) {
	dir, err := p.files.ProjectDir(project.ID)
	if err != nil {
		return nil, err
	}

	tables, err := p.tabular.Load(ctx, project.ID, asset.ID, filepath.Join(dir, asset.Name))
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, nil
	}

	chunks := make([]store.Chunk, 0, len(tables))
	for i, table := range tables {
		schemaText := p.tabular.SchemaText(ctx, table, 3)
		chunks = append(chunks, store.Chunk{
			Text: schemaText,
			Metadata: map[string]any{
				MetaKeyType:        MetaTypeTableSchema,
				MetaKeySourceAsset: asset.ID,
				MetaKeyTableName:   table.Name,
			},
			Order:     i + 1,
			ProjectID: project.ID,
			AssetID:   asset.ID,
		})
	}

	cfg := asset.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	cfg[assetConfigTablesKey] = tables
	if err := p.store.UpdateAssetConfig(ctx, asset.ID, cfg); err != nil {
		return nil, fmt.Errorf("record derived tables: %w", err)
	}
	return chunks, nil
}

// assetTables extracts previously recorded ETL table names from an
// asset's config document, which round-trips through JSONB.
func assetTables(asset *store.Asset) []string {
	raw, ok := asset.Config[assetConfigTablesKey]
	if !ok {
		return nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}

	var names []string
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := m["db_table_name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}
