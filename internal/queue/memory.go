package queue

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

const DriverMemory = "memory"

type MemoryDriver struct {
	mu   sync.Mutex
	jobs []JobRecord

	now func() time.Time
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{now: func() time.Time { return time.Now().UTC() }}
}

func (d *MemoryDriver) Name() string { return DriverMemory }

func (d *MemoryDriver) Enqueue(ctx context.Context, in EnqueueInput) (JobRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	rec := JobRecord{
		ID:            uuid.NewString(),
		WebhookID:     in.WebhookID,
		TopicKey:      in.TopicKey,
		ShopDomain:    in.ShopDomain,
		PayloadDigest: Digest(in.Payload),
		Status:        domain.JobStatusPending,
		EnqueuedAt:    now,
		UpdatedAt:     now,
	}
	d.jobs = append(d.jobs, rec)
	return rec, nil
}

func (d *MemoryDriver) Mark(ctx context.Context, id string, status domain.JobStatus, errMsg string) (JobRecord, bool, error) {
	if !status.Valid() {
		return JobRecord{}, false, ErrInvalidStatus
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.jobs {
		if d.jobs[i].ID != id {
			continue
		}
		j := &d.jobs[i]
		j.Status = status
		j.UpdatedAt = d.now()
		if status == domain.JobStatusFailed {
			j.Attempts++
			j.Error = errMsg
		} else {
			j.Error = ""
		}
		return *j, true, nil
	}
	return JobRecord{}, false, nil
}

func (d *MemoryDriver) Snapshot(ctx context.Context) ([]JobRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]JobRecord, len(d.jobs))
	copy(out, d.jobs)
	return out, nil
}

func (d *MemoryDriver) Clear(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.jobs = nil
	return nil
}

func (d *MemoryDriver) Purge(ctx context.Context, shopDomain string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	shop := strings.TrimSpace(shopDomain)
	kept := d.jobs[:0]
	removed := 0
	for _, j := range d.jobs {
		if strings.EqualFold(j.ShopDomain, shop) {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	d.jobs = kept
	return removed, nil
}

// ClaimPending moves up to limit of the oldest pending jobs to processing and
// returns them.
func (d *MemoryDriver) ClaimPending(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var out []JobRecord
	for i := range d.jobs {
		if len(out) >= limit {
			break
		}
		if d.jobs[i].Status != domain.JobStatusPending {
			continue
		}
		d.jobs[i].Status = domain.JobStatusProcessing
		d.jobs[i].UpdatedAt = now
		out = append(out, d.jobs[i])
	}
	return out, nil
}

func (d *MemoryDriver) Close() error { return nil }
