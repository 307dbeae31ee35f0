package analytics

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/state"
)

// DefaultTTLMinutes is how long a cached dataset stays usable.
const DefaultTTLMinutes = 360

type Fetcher interface {
	FetchSalesAnalytics(ctx context.Context, req FetchRequest) (Dataset, error)
}

type FetchRequest struct {
	Shop  string
	Query Query
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req FetchRequest) (Dataset, error)

func (f FetcherFunc) FetchSalesAnalytics(ctx context.Context, req FetchRequest) (Dataset, error) {
	return f(ctx, req)
}

type FetchInput struct {
	Shop       string
	StoreID    string // optional; resolved from Shop when empty
	Query      Query
	Now        time.Time
	TTLMinutes int
}

type CacheStatus string

const (
	CacheHit    CacheStatus = "hit"
	CacheMiss   CacheStatus = "miss"
	CacheBypass CacheStatus = "bypass"
)

type FetchResult struct {
	Dataset   Dataset
	Status    CacheStatus
	MetricKey string
	StoredAt  *time.Time
}

// cachePayload is what a KPI cache row stores.
type cachePayload struct {
	Dataset  Dataset   `json:"dataset"`
	Search   string    `json:"search"`
	StoredAt time.Time `json:"storedAt"`
}

type Cache struct {
	Store   state.Store
	Fetcher Fetcher
	Log     *zap.Logger
}

func (c *Cache) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// Fetch returns the cached dataset for the query when a usable row exists,
// otherwise fetches live and stores the result. Cache errors never block the
// live path.
func (c *Cache) Fetch(ctx context.Context, in FetchInput) (FetchResult, error) {
	ctx, span := otel.Tracer("merchantdesk/analytics").Start(ctx, "analytics.fetch_with_cache")
	defer span.End()

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ttl := in.TTLMinutes
	if ttl <= 0 {
		ttl = DefaultTTLMinutes
	}
	log := c.logger().With(zap.String("shop", in.Shop))

	start, okStart := parseRangeDate(in.Query.RangeStart)
	end, okEnd := parseRangeDate(in.Query.RangeEnd)
	if !okStart || !okEnd {
		span.SetAttributes(attribute.String("cache.status", string(CacheBypass)))
		return c.live(ctx, in, CacheBypass, "")
	}

	storeID := in.StoreID
	if storeID == "" {
		rec, ok, err := c.Store.FindStoreByDomain(ctx, in.Shop)
		if err != nil {
			log.Warn("analytics cache: store lookup failed", zap.Error(err))
		}
		if err != nil || !ok {
			span.SetAttributes(attribute.String("cache.status", string(CacheBypass)))
			return c.live(ctx, in, CacheBypass, "")
		}
		storeID = rec.ID
	}

	metricKey := MetricKey(in.Query)
	key := state.CacheRowKey{StoreID: storeID, MetricKey: metricKey, RangeStart: start, RangeEnd: end}
	span.SetAttributes(attribute.String("cache.metric_key", metricKey))

	row, found, err := c.Store.GetCacheRow(ctx, key)
	if err != nil {
		log.Warn("analytics cache: read failed", zap.String("metric_key", metricKey), zap.Error(err))
	}
	if err == nil && found && (row.ExpiresAt == nil || row.ExpiresAt.After(now)) {
		var p cachePayload
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			log.Warn("analytics cache: decode failed", zap.String("metric_key", metricKey), zap.Error(err))
		} else {
			span.SetAttributes(attribute.String("cache.status", string(CacheHit)))
			storedAt := p.StoredAt
			return FetchResult{Dataset: p.Dataset, Status: CacheHit, MetricKey: metricKey, StoredAt: &storedAt}, nil
		}
	}

	span.SetAttributes(attribute.String("cache.status", string(CacheMiss)))
	res, err := c.live(ctx, in, CacheMiss, metricKey)
	if err != nil {
		return res, err
	}

	b, err := json.Marshal(cachePayload{Dataset: res.Dataset, Search: in.Query.Values().Encode(), StoredAt: now})
	if err != nil {
		log.Warn("analytics cache: encode failed", zap.Error(err))
		return res, nil
	}
	expires := now.Add(time.Duration(ttl) * time.Minute)
	if err := c.Store.UpsertCacheRow(ctx, state.CacheRow{
		CacheRowKey: key,
		Payload:     b,
		RefreshedAt: now,
		ExpiresAt:   &expires,
	}); err != nil {
		log.Warn("analytics cache: write failed", zap.String("metric_key", metricKey), zap.Error(err))
		return res, nil
	}

	res.StoredAt = &now
	return res, nil
}

func (c *Cache) live(ctx context.Context, in FetchInput, status CacheStatus, metricKey string) (FetchResult, error) {
	ds, err := c.Fetcher.FetchSalesAnalytics(ctx, FetchRequest{Shop: in.Shop, Query: in.Query})
	if err != nil {
		return FetchResult{Status: status, MetricKey: metricKey}, err
	}
	return FetchResult{Dataset: ds, Status: status, MetricKey: metricKey}, nil
}
