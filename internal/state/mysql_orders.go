package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

func (s *MySQLStore) UpsertOrderFlag(ctx context.Context, rec OrderFlagRecord) error {
	flags := rec.Flags
	if flags == nil {
		flags = []string{}
	}
	fb, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO order_flags (
			shop_domain, order_id, order_name, financial_status, fulfillment_status,
			shipment_status, total_amount, currency, flags_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			order_name = VALUES(order_name),
			financial_status = VALUES(financial_status),
			fulfillment_status = VALUES(fulfillment_status),
			shipment_status = VALUES(shipment_status),
			total_amount = VALUES(total_amount),
			currency = VALUES(currency),
			flags_json = VALUES(flags_json),
			updated_at = VALUES(updated_at)`,
		normalizeDomain(rec.ShopDomain), rec.OrderID, rec.OrderName, rec.FinancialStatus, rec.FulfillmentStatus,
		rec.ShipmentStatus, rec.TotalAmount, rec.Currency, fb, rec.UpdatedAt.UTC(),
	)
	return err
}

const orderFlagColumns = `shop_domain, order_id, order_name, financial_status, fulfillment_status,
	shipment_status, total_amount, currency, flags_json, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderFlag(sc rowScanner) (OrderFlagRecord, error) {
	var (
		rec OrderFlagRecord
		fb  []byte
	)
	if err := sc.Scan(
		&rec.ShopDomain, &rec.OrderID, &rec.OrderName, &rec.FinancialStatus, &rec.FulfillmentStatus,
		&rec.ShipmentStatus, &rec.TotalAmount, &rec.Currency, &fb, &rec.UpdatedAt,
	); err != nil {
		return OrderFlagRecord{}, err
	}
	if len(fb) > 0 {
		if err := json.Unmarshal(fb, &rec.Flags); err != nil {
			return OrderFlagRecord{}, err
		}
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func (s *MySQLStore) GetOrderFlag(ctx context.Context, shopDomain, orderID string) (OrderFlagRecord, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+orderFlagColumns+` FROM order_flags WHERE shop_domain = ? AND order_id = ?`,
		normalizeDomain(shopDomain), orderID,
	)
	rec, err := scanOrderFlag(row)
	if err == sql.ErrNoRows {
		return OrderFlagRecord{}, false, nil
	}
	if err != nil {
		return OrderFlagRecord{}, false, err
	}
	return rec, true, nil
}

func (s *MySQLStore) ListOrderFlags(ctx context.Context, limit int) ([]OrderFlagRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+orderFlagColumns+` FROM order_flags ORDER BY updated_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]OrderFlagRecord, 0, limit)
	for rows.Next() {
		rec, err := scanOrderFlag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *MySQLStore) UpsertProductVelocity(ctx context.Context, rec ProductVelocityRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	var cover sql.NullFloat64
	if rec.DaysOfCover != nil {
		cover = sql.NullFloat64{Float64: *rec.DaysOfCover, Valid: true}
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO product_velocity (shop_domain, product_id, title, inventory_total, average_daily_sales, days_of_cover, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   title = VALUES(title),
		   inventory_total = VALUES(inventory_total),
		   average_daily_sales = VALUES(average_daily_sales),
		   days_of_cover = VALUES(days_of_cover),
		   updated_at = VALUES(updated_at)`,
		normalizeDomain(rec.ShopDomain), rec.ProductID, rec.Title, rec.InventoryTotal, rec.AverageDailySales, cover, rec.UpdatedAt.UTC(),
	)
	return err
}

func (s *MySQLStore) ListProductVelocity(ctx context.Context, limit int) ([]ProductVelocityRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT shop_domain, product_id, title, inventory_total, average_daily_sales, days_of_cover, updated_at
		 FROM product_velocity ORDER BY updated_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ProductVelocityRecord, 0, limit)
	for rows.Next() {
		var (
			rec   ProductVelocityRecord
			cover sql.NullFloat64
		)
		if err := rows.Scan(&rec.ShopDomain, &rec.ProductID, &rec.Title, &rec.InventoryTotal, &rec.AverageDailySales, &cover, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if cover.Valid {
			v := cover.Float64
			rec.DaysOfCover = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
