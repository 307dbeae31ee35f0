package queue

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

func TestDigest_TruncatesLongPayload(t *testing.T) {
	payload := map[string]string{"note": strings.Repeat("x", 2000)}

	d := NewMemoryDriver()
	rec, err := d.Enqueue(context.Background(), EnqueueInput{
		TopicKey:   domain.TopicOrdersCreate,
		ShopDomain: "shop-a.myshopify.com",
		Payload:    payload,
	})
	require.NoError(t, err)

	assert.Equal(t, MaxDigestLength, utf8.RuneCountInString(rec.PayloadDigest))
	assert.True(t, strings.HasSuffix(rec.PayloadDigest, "..."))
	assert.True(t, strings.HasPrefix(rec.PayloadDigest, `{"note":"xxx`))
}

func TestDigest_ShortPayloadUnchanged(t *testing.T) {
	assert.Equal(t, `{"id":1}`, Digest(map[string]int{"id": 1}))
	assert.Equal(t, "", Digest(nil))
}

func TestMemoryDriver_EnqueueDefaults(t *testing.T) {
	d := NewMemoryDriver()
	rec, err := d.Enqueue(context.Background(), EnqueueInput{
		WebhookID:  "wh-1",
		TopicKey:   domain.TopicProductsUpdate,
		ShopDomain: "shop-a.myshopify.com",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, domain.JobStatusPending, rec.Status)
	assert.Equal(t, 0, rec.Attempts)
	assert.Equal(t, rec.EnqueuedAt, rec.UpdatedAt)
}

func TestMemoryDriver_AttemptsOnlyIncrementOnFailure(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDriver()
	rec, _ := d.Enqueue(ctx, EnqueueInput{TopicKey: domain.TopicOrdersCreate, ShopDomain: "a"})

	got, ok, err := d.Mark(ctx, rec.ID, domain.JobStatusProcessing, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, got.Attempts)

	got, _, _ = d.Mark(ctx, rec.ID, domain.JobStatusFailed, "timeout")
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "timeout", got.Error)

	got, _, _ = d.Mark(ctx, rec.ID, domain.JobStatusFailed, "timeout again")
	assert.Equal(t, 2, got.Attempts)

	got, _, _ = d.Mark(ctx, rec.ID, domain.JobStatusCompleted, "")
	assert.Equal(t, 2, got.Attempts)
	assert.Empty(t, got.Error)
}

func TestMemoryDriver_MarkMissingIsNoop(t *testing.T) {
	d := NewMemoryDriver()
	_, ok, err := d.Mark(context.Background(), "nope", domain.JobStatusCompleted, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryDriver_MarkRejectsUnknownStatus(t *testing.T) {
	d := NewMemoryDriver()
	_, _, err := d.Mark(context.Background(), "nope", domain.JobStatus("done"), "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMemoryDriver_PurgeIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDriver()

	for i := 0; i < 3; i++ {
		_, _ = d.Enqueue(ctx, EnqueueInput{TopicKey: domain.TopicOrdersCreate, ShopDomain: "shop-a.myshopify.com"})
	}
	for i := 0; i < 2; i++ {
		_, _ = d.Enqueue(ctx, EnqueueInput{TopicKey: domain.TopicOrdersCreate, ShopDomain: "shop-b.myshopify.com"})
	}

	removed, err := d.Purge(ctx, "SHOP-A.MYSHOPIFY.COM")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	left, _ := d.Snapshot(ctx)
	require.Len(t, left, 2)
	for _, j := range left {
		assert.Equal(t, "shop-b.myshopify.com", j.ShopDomain)
	}
}

func TestMemoryDriver_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDriver()
	_, _ = d.Enqueue(ctx, EnqueueInput{TopicKey: domain.TopicOrdersCreate, ShopDomain: "a"})

	snap, _ := d.Snapshot(ctx)
	snap[0].Status = domain.JobStatusFailed

	again, _ := d.Snapshot(ctx)
	assert.Equal(t, domain.JobStatusPending, again[0].Status)
}

func TestMemoryDriver_Clear(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDriver()
	_, _ = d.Enqueue(ctx, EnqueueInput{TopicKey: domain.TopicOrdersCreate, ShopDomain: "a"})

	require.NoError(t, d.Clear(ctx))
	snap, _ := d.Snapshot(ctx)
	assert.Empty(t, snap)
}

func TestMemoryDriver_ClaimPendingOldestFirst(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDriver()
	first, _ := d.Enqueue(ctx, EnqueueInput{TopicKey: domain.TopicOrdersCreate, ShopDomain: "a"})
	second, _ := d.Enqueue(ctx, EnqueueInput{TopicKey: domain.TopicOrdersCreate, ShopDomain: "a"})

	claimed, err := d.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, first.ID, claimed[0].ID)
	assert.Equal(t, domain.JobStatusProcessing, claimed[0].Status)

	claimed, _ = d.ClaimPending(ctx, 5)
	require.Len(t, claimed, 1)
	assert.Equal(t, second.ID, claimed[0].ID)

	claimed, _ = d.ClaimPending(ctx, 5)
	assert.Empty(t, claimed)
}
