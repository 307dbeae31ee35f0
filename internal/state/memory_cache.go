package state

import (
	"context"
	"time"

	"github.com/google/uuid"
)

func normalizeCacheKey(k CacheRowKey) CacheRowKey {
	return CacheRowKey{
		StoreID:    k.StoreID,
		MetricKey:  k.MetricKey,
		RangeStart: k.RangeStart.UTC(),
		RangeEnd:   k.RangeEnd.UTC(),
	}
}

func (s *MemoryStore) GetCacheRow(ctx context.Context, key CacheRowKey) (CacheRow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.cache[normalizeCacheKey(key)]
	if !ok {
		return CacheRow{}, false, nil
	}
	row.Payload = append([]byte(nil), row.Payload...)
	return row, true, nil
}

func (s *MemoryStore) UpsertCacheRow(ctx context.Context, row CacheRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeCacheKey(row.CacheRowKey)
	if prev, ok := s.cache[key]; ok {
		row.ID = prev.ID
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.CacheRowKey = key
	row.Payload = append([]byte(nil), row.Payload...)
	s.cache[key] = row
	return nil
}

func (s *MemoryStore) ListExpiredCacheRows(ctx context.Context, now time.Time) ([]CacheRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []CacheRow
	for _, row := range s.cache {
		if row.ExpiresAt != nil && row.ExpiresAt.Before(now) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListFallbackStaleCacheRows(ctx context.Context, refreshedBefore time.Time) ([]CacheRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []CacheRow
	for _, row := range s.cache {
		if row.ExpiresAt == nil && row.RefreshedAt.Before(refreshedBefore) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteCacheRows(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	n := 0
	for key, row := range s.cache {
		if _, ok := want[row.ID]; ok {
			delete(s.cache, key)
			n++
		}
	}
	return n, nil
}
