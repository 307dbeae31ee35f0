package state

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// isDuplicateKey reports whether err is a MySQL unique-constraint violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func (s *MySQLStore) UpsertStore(ctx context.Context, rec StoreRecord) (StoreRecord, error) {
	now := time.Now().UTC()
	if existing, ok, err := s.FindStoreByDomain(ctx, rec.Domain); err != nil {
		return StoreRecord{}, err
	} else if ok {
		if rec.MyShopifyDomain != "" {
			existing.MyShopifyDomain = rec.MyShopifyDomain
		}
		if rec.Scopes != "" {
			existing.Scopes = rec.Scopes
		}
		existing.UninstalledAt = nil
		existing.UpdatedAt = now

		_, err := s.db.ExecContext(
			ctx,
			`UPDATE stores SET my_shopify_domain = ?, scopes = ?, uninstalled_at = NULL, updated_at = ? WHERE id = ?`,
			existing.MyShopifyDomain, existing.Scopes, now, existing.ID,
		)
		if err != nil {
			return StoreRecord{}, err
		}
		return existing, nil
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Domain = normalizeDomain(rec.Domain)
	if rec.MyShopifyDomain == "" {
		rec.MyShopifyDomain = rec.Domain
	}
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO stores (id, domain, my_shopify_domain, scopes, installed_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Domain, rec.MyShopifyDomain, rec.Scopes, rec.InstalledAt.UTC(), rec.UpdatedAt,
	)
	if err != nil {
		return StoreRecord{}, err
	}
	return rec, nil
}

func (s *MySQLStore) FindStoreByDomain(ctx context.Context, shopDomain string) (StoreRecord, bool, error) {
	d := normalizeDomain(shopDomain)
	if d == "" {
		return StoreRecord{}, false, nil
	}

	var (
		rec         StoreRecord
		uninstalled sql.NullTime
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, domain, my_shopify_domain, scopes, installed_at, uninstalled_at, updated_at
		 FROM stores
		 WHERE LOWER(domain) = ? OR LOWER(my_shopify_domain) = ?
		 LIMIT 1`,
		d, d,
	).Scan(&rec.ID, &rec.Domain, &rec.MyShopifyDomain, &rec.Scopes, &rec.InstalledAt, &uninstalled, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return StoreRecord{}, false, nil
	}
	if err != nil {
		return StoreRecord{}, false, err
	}
	rec.UninstalledAt = timePtr(uninstalled)
	rec.InstalledAt = rec.InstalledAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, true, nil
}

func (s *MySQLStore) MarkStoreUninstalled(ctx context.Context, shopDomain string, at time.Time) error {
	d := normalizeDomain(shopDomain)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE stores SET uninstalled_at = ?, updated_at = ?
		 WHERE LOWER(domain) = ? OR LOWER(my_shopify_domain) = ?`,
		at.UTC(), at.UTC(), d, d,
	)
	return err
}

func (s *MySQLStore) UpdateStoreScopes(ctx context.Context, shopDomain string, scopes string) error {
	d := normalizeDomain(shopDomain)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE stores SET scopes = ?, updated_at = ?
		 WHERE LOWER(domain) = ? OR LOWER(my_shopify_domain) = ?`,
		scopes, time.Now().UTC(), d, d,
	)
	return err
}

func (s *MySQLStore) GetIdempotency(ctx context.Context, shopDomain string, endpoint string, idemKeyHash string) (IdempotencyRecord, bool, error) {
	var status int
	var body []byte
	var created time.Time
	var expires time.Time

	err := s.db.QueryRowContext(
		ctx,
		`SELECT status_code, response_body_json, created_at, expires_at
		 FROM idempotency
		 WHERE shop_domain = ? AND endpoint = ? AND idem_key_hash = ?`,
		normalizeDomain(shopDomain), endpoint, idemKeyHash,
	).Scan(&status, &body, &created, &expires)

	if err == sql.ErrNoRows {
		return IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	if time.Now().UTC().After(expires.UTC()) {
		return IdempotencyRecord{}, false, nil
	}

	return IdempotencyRecord{
		StatusCode: status,
		BodyJSON:   body,
		CreatedAt:  created.UTC(),
		ExpiresAt:  expires.UTC(),
	}, true, nil
}

func (s *MySQLStore) PutIdempotency(ctx context.Context, shopDomain string, endpoint string, idemKeyHash string, rec IdempotencyRecord) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO idempotency (shop_domain, endpoint, idem_key_hash, status_code, response_body_json, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   status_code = VALUES(status_code),
		   response_body_json = VALUES(response_body_json),
		   created_at = VALUES(created_at),
		   expires_at = VALUES(expires_at)`,
		normalizeDomain(shopDomain), endpoint, idemKeyHash, rec.StatusCode, rec.BodyJSON, rec.CreatedAt.UTC(), rec.ExpiresAt.UTC(),
	)
	return err
}
