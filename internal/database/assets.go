package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"avif-everywhere/internal/variant"
)

// Asset is an uploaded source image.
type Asset struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	MimeType  string    `json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
}

// MissingAsset is an asset lacking at least one variant format.
type MissingAsset struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
	HasAVIF  bool   `json:"hasAvif"`
	HasWebP  bool   `json:"hasWebp"`
}

// CreateAsset registers path, or returns the existing asset for it.
func (d *Database) CreateAsset(ctx context.Context, path, mimeType string) (asset *Asset, err error) {
	start := time.Now()
	defer func() { recordQuery("create_asset", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO assets (path, mime_type) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET mime_type = excluded.mime_type
	`, path, mimeType)
	if err != nil {
		return nil, err
	}

	asset, err = scanAsset(d.db.QueryRowContext(ctx,
		"SELECT id, path, mime_type, created_at FROM assets WHERE path = ?", path))
	return asset, err
}

// GetAsset returns the asset with id, or variant.ErrAssetNotFound.
func (d *Database) GetAsset(ctx context.Context, id int64) (asset *Asset, err error) {
	start := time.Now()
	defer func() { recordQuery("get_asset", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	asset, err = scanAsset(d.db.QueryRowContext(ctx,
		"SELECT id, path, mime_type, created_at FROM assets WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, variant.ErrAssetNotFound
	}
	return asset, err
}

// GetAssetPath implements variant.AssetSource.
func (d *Database) GetAssetPath(ctx context.Context, id int64) (string, error) {
	asset, err := d.GetAsset(ctx, id)
	if err != nil {
		return "", err
	}
	return asset.Path, nil
}

// DeleteAsset removes the asset row. Its variant rows go with it.
func (d *Database) DeleteAsset(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_asset", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return variant.ErrAssetNotFound
	}
	return nil
}

// ListMissing returns assets that lack an AVIF or a WebP record. Resized
// intermediates (name-WxH.ext) are skipped, they are never converted on
// their own.
func (d *Database) ListMissing(ctx context.Context) (missing []MissingAsset, err error) {
	start := time.Now()
	defer func() { recordQuery("list_missing", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT a.id, a.path,
			EXISTS(SELECT 1 FROM variants v WHERE v.asset_id = a.id AND v.format = 'avif'),
			EXISTS(SELECT 1 FROM variants v WHERE v.asset_id = a.id AND v.format = 'webp')
		FROM assets a
		ORDER BY a.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m MissingAsset
		if err = rows.Scan(&m.ID, &m.Path, &m.HasAVIF, &m.HasWebP); err != nil {
			return nil, err
		}
		if m.HasAVIF && m.HasWebP {
			continue
		}
		m.Filename = filepath.Base(m.Path)
		if variant.IsIntermediateSize(m.Filename) {
			continue
		}
		missing = append(missing, m)
	}
	err = rows.Err()
	return missing, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var (
		a       Asset
		created int64
	)
	if err := row.Scan(&a.ID, &a.Path, &a.MimeType, &created); err != nil {
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	a.CreatedAt = time.Unix(created, 0)
	return &a, nil
}
