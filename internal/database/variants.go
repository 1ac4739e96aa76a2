package database

import (
	"context"
	"database/sql"
	"time"

	"avif-everywhere/internal/variant"
)

// UpsertVariant stores rec, replacing any earlier record for the same asset
// and format. Implements variant.VariantStore.
func (d *Database) UpsertVariant(ctx context.Context, rec variant.VariantRecord) (err error) {
	start := time.Now()
	defer func() { recordQuery("upsert_variant", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var savings sql.NullInt64
	if rec.SavingsPercent != nil {
		savings = sql.NullInt64{Int64: int64(*rec.SavingsPercent), Valid: true}
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO variants (asset_id, format, path, url, bytes, quality, resize, savings_percent, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset_id, format) DO UPDATE SET
			path = excluded.path,
			url = excluded.url,
			bytes = excluded.bytes,
			quality = excluded.quality,
			resize = excluded.resize,
			savings_percent = excluded.savings_percent,
			updated_at = excluded.updated_at
	`, rec.AssetID, string(rec.Format), rec.Path, rec.URL, rec.Bytes, rec.Quality, rec.Resize, savings, updated.Unix())
	return err
}

// GetVariants returns the records for an asset, AVIF first.
func (d *Database) GetVariants(ctx context.Context, assetID int64) (records []variant.VariantRecord, err error) {
	start := time.Now()
	defer func() { recordQuery("get_variants", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT asset_id, format, path, url, bytes, quality, resize, savings_percent, updated_at
		FROM variants WHERE asset_id = ?
		ORDER BY CASE format WHEN 'avif' THEN 0 ELSE 1 END
	`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec     variant.VariantRecord
			format  string
			savings sql.NullInt64
			updated int64
		)
		if err = rows.Scan(&rec.AssetID, &format, &rec.Path, &rec.URL, &rec.Bytes,
			&rec.Quality, &rec.Resize, &savings, &updated); err != nil {
			return nil, err
		}
		rec.Format = variant.Format(format)
		if savings.Valid {
			pct := int(savings.Int64)
			rec.SavingsPercent = &pct
		}
		rec.UpdatedAt = time.Unix(updated, 0).UTC()
		records = append(records, rec)
	}
	err = rows.Err()
	return records, err
}

// DeleteVariants removes every record for an asset. Deleting nothing is not
// an error.
func (d *Database) DeleteVariants(ctx context.Context, assetID int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_variants", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM variants WHERE asset_id = ?", assetID)
	return err
}

// DeleteVariant removes the record of one format for an asset.
func (d *Database) DeleteVariant(ctx context.Context, assetID int64, format variant.Format) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_variant", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM variants WHERE asset_id = ? AND format = ?", assetID, string(format))
	return err
}
