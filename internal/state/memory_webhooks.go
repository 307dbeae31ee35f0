package state

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

// ClaimWebhook records the delivery id atomically. claimed is false when the
// id was already present.
func (s *MemoryStore) ClaimWebhook(ctx context.Context, webhookID, shopDomain, topic string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claims[webhookID]; exists {
		return false, nil
	}
	s.claims[webhookID] = webhookClaim{shopDomain: normalizeDomain(shopDomain), topic: topic, at: at.UTC()}
	return true, nil
}

func (s *MemoryStore) ReleaseWebhook(ctx context.Context, webhookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claims, webhookID)
	return nil
}

func (s *MemoryStore) CreateWebhookEvent(ctx context.Context, rec WebhookEventRecord) (WebhookEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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
	s.events[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) MarkWebhookEvent(ctx context.Context, id string, status domain.WebhookStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.Error = message
	rec.UpdatedAt = time.Now().UTC()
	s.events[id] = rec
	return nil
}

func (s *MemoryStore) GetWebhookEvent(ctx context.Context, id string) (WebhookEventRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.events[id]
	return rec, ok, nil
}

func (s *MemoryStore) UpsertWebhookRegistration(ctx context.Context, rec WebhookRegistrationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ShopDomain = normalizeDomain(rec.ShopDomain)
	key := rec.ShopDomain + "|" + string(rec.TopicKey)
	prev, ok := s.registrations[key]
	if ok {
		rec.DeliveryCount = prev.DeliveryCount + 1
	} else {
		rec.DeliveryCount = 1
	}
	if rec.LastReceivedAt.IsZero() {
		rec.LastReceivedAt = time.Now().UTC()
	}
	s.registrations[key] = rec
	return nil
}

func (s *MemoryStore) ListWebhookRegistrations(ctx context.Context, limit int) ([]WebhookRegistrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WebhookRegistrationRecord, 0, len(s.registrations))
	for _, rec := range s.registrations {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastReceivedAt.After(out[j].LastReceivedAt)
	})
	return capList(out, limit), nil
}

func capList[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
