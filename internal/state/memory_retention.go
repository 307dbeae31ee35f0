package state

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

func (s *MemoryStore) InsertConnectionEvent(ctx context.Context, rec ConnectionEventRecord) (ConnectionEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.connEvents[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) ListConnectionEventsBefore(ctx context.Context, cutoff time.Time) ([]ConnectionEventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ConnectionEventRecord
	for _, rec := range s.connEvents {
		if rec.CreatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) LatestConnectionEvent(ctx context.Context, storeID, integration string) (ConnectionEventRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest ConnectionEventRecord
		found  bool
	)
	for _, rec := range s.connEvents {
		if rec.StoreID != storeID || rec.Integration != integration {
			continue
		}
		if !found || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
			found = true
		}
	}
	return latest, found, nil
}

func (s *MemoryStore) DeleteConnectionEvents(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := s.connEvents[id]; ok {
			delete(s.connEvents, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpsertStoreSecret(ctx context.Context, rec StoreSecretRecord) (StoreSecretRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		for id, existing := range s.secrets {
			if existing.StoreID == rec.StoreID && existing.Provider == rec.Provider {
				rec.ID = id
				break
			}
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UpdatedAt = time.Now().UTC()
	s.secrets[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) ListSecretsDueBefore(ctx context.Context, t time.Time) ([]StoreSecretRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []StoreSecretRecord
	for _, rec := range s.secrets {
		if rec.RotationReminderAt != nil && !rec.RotationReminderAt.After(t) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RotationReminderAt.Before(*out[j].RotationReminderAt)
	})
	return out, nil
}
