package dedupe

import (
	"context"
	"time"

	"github.com/ETAnderson/merchantdesk/internal/state"
)

// Claimer records a webhook delivery id exactly once. Claim returns
// dup=true when the id was claimed before.
type Claimer interface {
	Claim(ctx context.Context, webhookID, shopDomain, topic string) (dup bool, err error)
	Release(ctx context.Context, webhookID string) error
}

// StoreClaimer claims ids in the state store's processed-webhook table.
type StoreClaimer struct {
	Store state.Store
	Now   func() time.Time
}

func NewStoreClaimer(st state.Store) *StoreClaimer {
	return &StoreClaimer{Store: st}
}

func (c *StoreClaimer) Claim(ctx context.Context, webhookID, shopDomain, topic string) (bool, error) {
	now := time.Now().UTC()
	if c.Now != nil {
		now = c.Now()
	}
	claimed, err := c.Store.ClaimWebhook(ctx, webhookID, shopDomain, topic, now)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

func (c *StoreClaimer) Release(ctx context.Context, webhookID string) error {
	return c.Store.ReleaseWebhook(ctx, webhookID)
}
