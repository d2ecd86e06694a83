package store

import (
	"context"
	"fmt"
)

const assetColumns = `asset_id, asset_project_id, asset_type, asset_name, asset_size, asset_config, created_at`

func scanAsset(row interface{ Scan(...any) error }) (*Asset, error) {
	var a Asset
	if err := row.Scan(&a.ID, &a.ProjectID, &a.Type, &a.Name, &a.Size, &a.Config, &a.CreatedAt); err != nil {
		return nil, translateErr(err)
	}
	return &a, nil
}

// CreateAsset registers an uploaded file under a project. The name is
// unique per project; re-uploading the same name returns ErrAlreadyExists.
func (s *Store) CreateAsset(ctx context.Context, projectID int, assetType, name string, size int64, cfg map[string]any) (*Asset, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO assets (asset_project_id, asset_type, asset_name, asset_size, asset_config)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+assetColumns,
		projectID, assetType, name, size, cfg)
	a, err := scanAsset(row)
	if err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	return a, nil
}

// GetAssetByName fetches an asset by project and stored file name.
func (s *Store) GetAssetByName(ctx context.Context, projectID int, name string) (*Asset, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE asset_project_id = $1 AND asset_name = $2`,
		projectID, name)
	a, err := scanAsset(row)
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// ListAssets returns all assets of a project, newest first.
func (s *Store) ListAssets(ctx context.Context, projectID int) ([]Asset, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE asset_project_id = $1 ORDER BY asset_id DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Type, &a.Name, &a.Size, &a.Config, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// UpdateAssetConfig replaces an asset's config document.
func (s *Store) UpdateAssetConfig(ctx context.Context, assetID int, cfg map[string]any) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE assets SET asset_config = $1 WHERE asset_id = $2`,
		cfg, assetID)
	if err != nil {
		return fmt.Errorf("update asset config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAssetsByProject removes all assets of a project. Chunks cascade.
func (s *Store) DeleteAssetsByProject(ctx context.Context, projectID int) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM assets WHERE asset_project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete assets: %w", err)
	}
	return tag.RowsAffected(), nil
}
