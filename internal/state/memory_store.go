package state

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu sync.RWMutex

	stores map[string]StoreRecord // id -> store

	claims        map[string]webhookClaim // webhook id -> claim
	events        map[string]WebhookEventRecord
	registrations map[string]WebhookRegistrationRecord // shop|topicKey -> registration

	orderFlags map[string]OrderFlagRecord       // shop|orderID -> flags
	velocity   map[string]ProductVelocityRecord // shop|productID -> velocity

	cache map[CacheRowKey]CacheRow

	connEvents map[string]ConnectionEventRecord
	secrets    map[string]StoreSecretRecord

	idem map[string]map[string]map[string]IdempotencyRecord // shop -> endpoint -> keyhash -> record
}

type webhookClaim struct {
	shopDomain string
	topic      string
	at         time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stores:        make(map[string]StoreRecord),
		claims:        make(map[string]webhookClaim),
		events:        make(map[string]WebhookEventRecord),
		registrations: make(map[string]WebhookRegistrationRecord),
		orderFlags:    make(map[string]OrderFlagRecord),
		velocity:      make(map[string]ProductVelocityRecord),
		cache:         make(map[CacheRowKey]CacheRow),
		connEvents:    make(map[string]ConnectionEventRecord),
		secrets:       make(map[string]StoreSecretRecord),
		idem:          make(map[string]map[string]map[string]IdempotencyRecord),
	}
}

func (s *MemoryStore) UpsertStore(ctx context.Context, rec StoreRecord) (StoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.findStoreLocked(rec.Domain); ok {
		if rec.MyShopifyDomain != "" {
			existing.MyShopifyDomain = rec.MyShopifyDomain
		}
		if rec.Scopes != "" {
			existing.Scopes = rec.Scopes
		}
		existing.UninstalledAt = nil
		existing.UpdatedAt = now
		s.stores[existing.ID] = existing
		return existing, nil
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MyShopifyDomain == "" {
		rec.MyShopifyDomain = rec.Domain
	}
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = now
	}
	rec.UpdatedAt = now
	s.stores[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) FindStoreByDomain(ctx context.Context, shopDomain string) (StoreRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.findStoreLocked(shopDomain)
	return rec, ok, nil
}

func (s *MemoryStore) findStoreLocked(shopDomain string) (StoreRecord, bool) {
	d := normalizeDomain(shopDomain)
	if d == "" {
		return StoreRecord{}, false
	}
	for _, rec := range s.stores {
		if strings.EqualFold(rec.Domain, d) || strings.EqualFold(rec.MyShopifyDomain, d) {
			return rec, true
		}
	}
	return StoreRecord{}, false
}

func (s *MemoryStore) MarkStoreUninstalled(ctx context.Context, shopDomain string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.findStoreLocked(shopDomain)
	if !ok {
		return nil
	}
	t := at.UTC()
	rec.UninstalledAt = &t
	rec.UpdatedAt = t
	s.stores[rec.ID] = rec
	return nil
}

func (s *MemoryStore) UpdateStoreScopes(ctx context.Context, shopDomain string, scopes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.findStoreLocked(shopDomain)
	if !ok {
		return nil
	}
	rec.Scopes = scopes
	rec.UpdatedAt = time.Now().UTC()
	s.stores[rec.ID] = rec
	return nil
}

func (s *MemoryStore) GetIdempotency(ctx context.Context, shopDomain string, endpoint string, idemKeyHash string) (IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	te, ok := s.idem[normalizeDomain(shopDomain)]
	if !ok {
		return IdempotencyRecord{}, false, nil
	}
	ee, ok := te[endpoint]
	if !ok {
		return IdempotencyRecord{}, false, nil
	}
	rec, ok := ee[idemKeyHash]
	if !ok {
		return IdempotencyRecord{}, false, nil
	}

	if time.Now().UTC().After(rec.ExpiresAt) {
		return IdempotencyRecord{}, false, nil
	}

	cp := rec
	cp.BodyJSON = append([]byte(nil), rec.BodyJSON...)
	return cp, true, nil
}

func (s *MemoryStore) PutIdempotency(ctx context.Context, shopDomain string, endpoint string, idemKeyHash string, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shop := normalizeDomain(shopDomain)
	te, ok := s.idem[shop]
	if !ok {
		te = make(map[string]map[string]IdempotencyRecord)
		s.idem[shop] = te
	}
	ee, ok := te[endpoint]
	if !ok {
		ee = make(map[string]IdempotencyRecord)
		te[endpoint] = ee
	}

	cp := rec
	cp.BodyJSON = append([]byte(nil), rec.BodyJSON...)
	ee[idemKeyHash] = cp
	return nil
}
