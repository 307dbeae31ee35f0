package state

import (
	"context"
	"sort"
	"time"
)

func (s *MemoryStore) UpsertOrderFlag(ctx context.Context, rec OrderFlagRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ShopDomain = normalizeDomain(rec.ShopDomain)
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	rec.Flags = copyFlags(rec.Flags)
	s.orderFlags[rec.ShopDomain+"|"+rec.OrderID] = rec
	return nil
}

func (s *MemoryStore) GetOrderFlag(ctx context.Context, shopDomain, orderID string) (OrderFlagRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.orderFlags[normalizeDomain(shopDomain)+"|"+orderID]
	if !ok {
		return OrderFlagRecord{}, false, nil
	}
	rec.Flags = copyFlags(rec.Flags)
	return rec, true, nil
}

func (s *MemoryStore) ListOrderFlags(ctx context.Context, limit int) ([]OrderFlagRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OrderFlagRecord, 0, len(s.orderFlags))
	for _, rec := range s.orderFlags {
		rec.Flags = copyFlags(rec.Flags)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return capList(out, limit), nil
}

func (s *MemoryStore) UpsertProductVelocity(ctx context.Context, rec ProductVelocityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ShopDomain = normalizeDomain(rec.ShopDomain)
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	s.velocity[rec.ShopDomain+"|"+rec.ProductID] = rec
	return nil
}

func (s *MemoryStore) ListProductVelocity(ctx context.Context, limit int) ([]ProductVelocityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProductVelocityRecord, 0, len(s.velocity))
	for _, rec := range s.velocity {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return capList(out, limit), nil
}

// copyFlags keeps an empty flag list as [] rather than nil.
func copyFlags(flags []string) []string {
	out := make([]string, len(flags))
	copy(out, flags)
	return out
}
