package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

// ClaimWebhook relies on the primary key of processed_webhooks: the first
// insert wins, any later insert for the same id is a duplicate.
func (s *MySQLStore) ClaimWebhook(ctx context.Context, webhookID, shopDomain, topic string, at time.Time) (bool, error) {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO processed_webhooks (webhook_id, shop_domain, topic, claimed_at) VALUES (?, ?, ?, ?)`,
		webhookID, normalizeDomain(shopDomain), topic, at.UTC(),
	)
	if isDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MySQLStore) ReleaseWebhook(ctx context.Context, webhookID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM processed_webhooks WHERE webhook_id = ?`, webhookID)
	return err
}

func (s *MySQLStore) CreateWebhookEvent(ctx context.Context, rec WebhookEventRecord) (WebhookEventRecord, error) {
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = domain.WebhookStatusReceived
	}
	rec.ShopDomain = normalizeDomain(rec.ShopDomain)
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO webhook_events (id, webhook_id, shop_domain, topic, topic_key, api_version, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.WebhookID, rec.ShopDomain, rec.Topic, string(rec.TopicKey), rec.APIVersion,
		string(rec.Status), rec.Error, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return WebhookEventRecord{}, err
	}
	return rec, nil
}

func (s *MySQLStore) MarkWebhookEvent(ctx context.Context, id string, status domain.WebhookStatus, message string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE webhook_events SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), message, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) GetWebhookEvent(ctx context.Context, id string) (WebhookEventRecord, bool, error) {
	var (
		rec      WebhookEventRecord
		topicKey string
		status   string
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, webhook_id, shop_domain, topic, topic_key, api_version, status, error, created_at, updated_at
		 FROM webhook_events WHERE id = ?`,
		id,
	).Scan(&rec.ID, &rec.WebhookID, &rec.ShopDomain, &rec.Topic, &topicKey, &rec.APIVersion, &status, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return WebhookEventRecord{}, false, nil
	}
	if err != nil {
		return WebhookEventRecord{}, false, err
	}
	rec.TopicKey = domain.TopicKey(topicKey)
	rec.Status = domain.WebhookStatus(status)
	return rec, true, nil
}

func (s *MySQLStore) UpsertWebhookRegistration(ctx context.Context, rec WebhookRegistrationRecord) error {
	if rec.LastReceivedAt.IsZero() {
		rec.LastReceivedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO webhook_registrations (shop_domain, topic_key, topic, last_webhook_id, last_received_at, delivery_count)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON DUPLICATE KEY UPDATE
		   topic = VALUES(topic),
		   last_webhook_id = VALUES(last_webhook_id),
		   last_received_at = VALUES(last_received_at),
		   delivery_count = delivery_count + 1`,
		normalizeDomain(rec.ShopDomain), string(rec.TopicKey), rec.Topic, rec.LastWebhookID, rec.LastReceivedAt.UTC(),
	)
	return err
}

func (s *MySQLStore) ListWebhookRegistrations(ctx context.Context, limit int) ([]WebhookRegistrationRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT shop_domain, topic_key, topic, last_webhook_id, last_received_at, delivery_count
		 FROM webhook_registrations
		 ORDER BY last_received_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]WebhookRegistrationRecord, 0, limit)
	for rows.Next() {
		var (
			rec      WebhookRegistrationRecord
			topicKey string
		)
		if err := rows.Scan(&rec.ShopDomain, &topicKey, &rec.Topic, &rec.LastWebhookID, &rec.LastReceivedAt, &rec.DeliveryCount); err != nil {
			return nil, err
		}
		rec.TopicKey = domain.TopicKey(topicKey)
		out = append(out, rec)
	}
	return out, rows.Err()
}
