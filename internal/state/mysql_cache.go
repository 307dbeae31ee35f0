package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const cacheColumns = `id, store_id, metric_key, range_start, range_end, payload_json, refreshed_at, expires_at`

func scanCacheRow(sc rowScanner) (CacheRow, error) {
	var (
		row     CacheRow
		expires sql.NullTime
	)
	if err := sc.Scan(&row.ID, &row.StoreID, &row.MetricKey, &row.RangeStart, &row.RangeEnd, &row.Payload, &row.RefreshedAt, &expires); err != nil {
		return CacheRow{}, err
	}
	row.RangeStart = row.RangeStart.UTC()
	row.RangeEnd = row.RangeEnd.UTC()
	row.RefreshedAt = row.RefreshedAt.UTC()
	row.ExpiresAt = timePtr(expires)
	return row, nil
}

func (s *MySQLStore) GetCacheRow(ctx context.Context, key CacheRowKey) (CacheRow, bool, error) {
	row, err := scanCacheRow(s.db.QueryRowContext(
		ctx,
		`SELECT `+cacheColumns+` FROM kpi_cache
		 WHERE store_id = ? AND metric_key = ? AND range_start = ? AND range_end = ?`,
		key.StoreID, key.MetricKey, key.RangeStart.UTC(), key.RangeEnd.UTC(),
	))
	if err == sql.ErrNoRows {
		return CacheRow{}, false, nil
	}
	if err != nil {
		return CacheRow{}, false, err
	}
	return row, true, nil
}

func (s *MySQLStore) UpsertCacheRow(ctx context.Context, row CacheRow) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO kpi_cache (id, store_id, metric_key, range_start, range_end, payload_json, refreshed_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   payload_json = VALUES(payload_json),
		   refreshed_at = VALUES(refreshed_at),
		   expires_at = VALUES(expires_at)`,
		row.ID, row.StoreID, row.MetricKey, row.RangeStart.UTC(), row.RangeEnd.UTC(),
		row.Payload, row.RefreshedAt.UTC(), nullTime(row.ExpiresAt),
	)
	return err
}

func (s *MySQLStore) listCacheRows(ctx context.Context, where string, args ...any) ([]CacheRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cacheColumns+` FROM kpi_cache WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CacheRow
	for rows.Next() {
		row, err := scanCacheRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *MySQLStore) ListExpiredCacheRows(ctx context.Context, now time.Time) ([]CacheRow, error) {
	return s.listCacheRows(ctx, `expires_at IS NOT NULL AND expires_at < ?`, now.UTC())
}

func (s *MySQLStore) ListFallbackStaleCacheRows(ctx context.Context, refreshedBefore time.Time) ([]CacheRow, error) {
	return s.listCacheRows(ctx, `expires_at IS NULL AND refreshed_at < ?`, refreshedBefore.UTC())
}

func (s *MySQLStore) DeleteCacheRows(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM kpi_cache WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
