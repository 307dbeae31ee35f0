package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ETAnderson/merchantdesk/internal/queue"
)

const (
	DefaultConcurrency = 10
	maxRetryDelay      = time.Minute
)

// RetryDelay doubles from one second per retry, capped at a minute.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > 6 {
		return maxRetryDelay
	}
	d := time.Second << uint(n)
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// NewTaskHandler adapts an Executor to asynq webhook tasks.
func NewTaskHandler(exec Executor) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		var p queue.TaskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode task %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		if p.TopicKey == "" {
			if key, ok := queue.TopicFromTaskType(t.Type()); ok {
				p.TopicKey = key
			}
		}

		id, _ := asynq.GetTaskID(ctx)
		retried, _ := asynq.GetRetryCount(ctx)

		job := Job{
			ID:         id,
			WebhookID:  p.WebhookID,
			TopicKey:   p.TopicKey,
			ShopDomain: p.ShopDomain,
			Payload:    p.Payload,
			Attempt:    retried + 1,
		}
		return exec.Execute(WithShop(WithJobID(ctx, id), p.ShopDomain), job)
	})
}

// NewServeMux routes every webhook task type to exec.
func NewServeMux(exec Executor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(queue.TaskTypePrefix, NewTaskHandler(exec))
	return mux
}

type ServerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Logger      asynq.Logger
}

// NewServer builds the asynq server that consumes the webhook queue.
func NewServer(cfg ServerConfig) (*asynq.Server, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.QueueName == "" {
		cfg.QueueName = queue.DefaultQueueName
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return asynq.NewServer(opt, asynq.Config{
		Concurrency:    cfg.Concurrency,
		Queues:         map[string]int{cfg.QueueName: 1},
		RetryDelayFunc: RetryDelay,
		Logger:         cfg.Logger,
	}), nil
}
