package database

import (
	"context"
	"time"

	"avif-everywhere/internal/metrics"
)

// GetStats returns library totals. Implements metrics.StatsProvider.
func (d *Database) GetStats(ctx context.Context) (stats metrics.Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets").Scan(&stats.TotalAssets); err != nil {
		return stats, err
	}

	rows, err := d.db.QueryContext(ctx, "SELECT format, COUNT(*), COALESCE(SUM(bytes), 0) FROM variants GROUP BY format")
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			format string
			count  int
			bytes  int64
		)
		if err = rows.Scan(&format, &count, &bytes); err != nil {
			return stats, err
		}
		switch format {
		case "avif":
			stats.AVIFVariants, stats.AVIFBytes = count, bytes
		case "webp":
			stats.WebPVariants, stats.WebPBytes = count, bytes
		}
	}
	err = rows.Err()
	return stats, err
}
