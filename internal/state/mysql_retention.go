package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

func (s *MySQLStore) InsertConnectionEvent(ctx context.Context, rec ConnectionEventRecord) (ConnectionEventRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO connection_events (id, store_id, integration, kind, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StoreID, rec.Integration, rec.Kind, rec.Message, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return ConnectionEventRecord{}, err
	}
	return rec, nil
}

const connEventColumns = `id, store_id, integration, kind, message, created_at`

func scanConnEvent(sc rowScanner) (ConnectionEventRecord, error) {
	var rec ConnectionEventRecord
	if err := sc.Scan(&rec.ID, &rec.StoreID, &rec.Integration, &rec.Kind, &rec.Message, &rec.CreatedAt); err != nil {
		return ConnectionEventRecord{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (s *MySQLStore) ListConnectionEventsBefore(ctx context.Context, cutoff time.Time) ([]ConnectionEventRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+connEventColumns+` FROM connection_events WHERE created_at < ?`,
		cutoff.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConnectionEventRecord
	for rows.Next() {
		rec, err := scanConnEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *MySQLStore) LatestConnectionEvent(ctx context.Context, storeID, integration string) (ConnectionEventRecord, bool, error) {
	rec, err := scanConnEvent(s.db.QueryRowContext(
		ctx,
		`SELECT `+connEventColumns+` FROM connection_events
		 WHERE store_id = ? AND integration = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		storeID, integration,
	))
	if err == sql.ErrNoRows {
		return ConnectionEventRecord{}, false, nil
	}
	if err != nil {
		return ConnectionEventRecord{}, false, err
	}
	return rec, true, nil
}

func (s *MySQLStore) DeleteConnectionEvents(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM connection_events WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *MySQLStore) UpsertStoreSecret(ctx context.Context, rec StoreSecretRecord) (StoreSecretRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO store_secrets (id, store_id, provider, label, rotation_reminder_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   label = VALUES(label),
		   rotation_reminder_at = VALUES(rotation_reminder_at),
		   updated_at = VALUES(updated_at)`,
		rec.ID, rec.StoreID, rec.Provider, rec.Label, nullTime(rec.RotationReminderAt), rec.UpdatedAt,
	)
	if err != nil {
		return StoreSecretRecord{}, err
	}
	return rec, nil
}

func (s *MySQLStore) ListSecretsDueBefore(ctx context.Context, t time.Time) ([]StoreSecretRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, store_id, provider, label, rotation_reminder_at, updated_at
		 FROM store_secrets
		 WHERE rotation_reminder_at IS NOT NULL AND rotation_reminder_at <= ?
		 ORDER BY rotation_reminder_at ASC`,
		t.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoreSecretRecord
	for rows.Next() {
		var (
			rec      StoreSecretRecord
			reminder sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.StoreID, &rec.Provider, &rec.Label, &reminder, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.RotationReminderAt = timePtr(reminder)
		out = append(out, rec)
	}
	return out, rows.Err()
}
