package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ETAnderson/merchantdesk/internal/api/shopctx"
	"github.com/ETAnderson/merchantdesk/internal/domain"
	"github.com/ETAnderson/merchantdesk/internal/queue"
)

func TestRetryDelay(t *testing.T) {
	cases := map[int]time.Duration{
		-1: time.Second,
		0:  time.Second,
		1:  2 * time.Second,
		3:  8 * time.Second,
		5:  32 * time.Second,
		6:  time.Minute,
		20: time.Minute,
	}
	for n, want := range cases {
		assert.Equal(t, want, RetryDelay(n, nil, nil), "retry %d", n)
	}
}

func TestTaskHandler_DecodesPayload(t *testing.T) {
	body, err := json.Marshal(queue.TaskPayload{
		WebhookID:  "wh-1",
		ShopDomain: "shop-a.myshopify.com",
		Payload:    json.RawMessage(`{"action":"order_flagged"}`),
	})
	require.NoError(t, err)

	var got Job
	var shop string
	h := NewTaskHandler(execFunc(func(ctx context.Context, job Job) error {
		got = job
		shop = shopctx.Shop(ctx)
		return nil
	}))

	task := asynq.NewTask(queue.TaskType(domain.TopicOrdersCreate), body)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	assert.Equal(t, "wh-1", got.WebhookID)
	assert.Equal(t, domain.TopicOrdersCreate, got.TopicKey)
	assert.Equal(t, "shop-a.myshopify.com", got.ShopDomain)
	assert.Equal(t, 1, got.Attempt)
	assert.JSONEq(t, `{"action":"order_flagged"}`, string(got.Payload))
	assert.Equal(t, "shop-a.myshopify.com", shop)
}

func TestTaskHandler_BadPayloadSkipsRetry(t *testing.T) {
	called := false
	h := NewTaskHandler(execFunc(func(ctx context.Context, job Job) error {
		called = true
		return nil
	}))

	err := h.ProcessTask(context.Background(), asynq.NewTask("webhook:ORDERS_CREATE", []byte("{not json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.False(t, called)
}

func TestTaskHandler_PropagatesExecutorError(t *testing.T) {
	boom := errors.New("boom")
	h := NewTaskHandler(execFunc(func(ctx context.Context, job Job) error { return boom }))

	err := h.ProcessTask(context.Background(), asynq.NewTask("webhook:ORDERS_CREATE", []byte(`{"shopDomain":"a"}`)))
	assert.ErrorIs(t, err, boom)
}

func TestNewServer_RejectsBadURL(t *testing.T) {
	_, err := NewServer(ServerConfig{RedisURL: "http://not-redis"})
	assert.Error(t, err)
}
