package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

const (
	DriverRedis = "redis"

	DefaultQueueName = "webhooks"

	snapshotLimit = 50
	listPageSize  = 100

	// MaxRetry gives every follow-up task three attempts in total.
	MaxRetry = 2

	completedRetention = 24 * time.Hour
)

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type taskInspector interface {
	ListPendingTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListActiveTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListCompletedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListRetryTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListAggregatingTasks(queue, group string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Groups(queue string) ([]*asynq.GroupInfo, error)

	DeleteTask(queue, id string) error
	DeleteAllPendingTasks(queue string) (int, error)
	DeleteAllScheduledTasks(queue string) (int, error)
	DeleteAllRetryTasks(queue string) (int, error)
	DeleteAllArchivedTasks(queue string) (int, error)
	DeleteAllCompletedTasks(queue string) (int, error)

	Close() error
}

type listFunc func(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)

// RedisDriver keeps jobs in Redis through asynq. Job state belongs to the
// asynq runtime, so Mark is rejected.
type RedisDriver struct {
	client    taskEnqueuer
	inspector taskInspector
	queue     string

	now func() time.Time
}

type RedisConfig struct {
	URL       string
	QueueName string
}

func NewRedisDriver(cfg RedisConfig) (*RedisDriver, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrRedisURLRequired
	}

	opt, err := asynq.ParseRedisURI(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}

	return newRedisDriver(asynq.NewClient(opt), asynq.NewInspector(opt), cfg.QueueName), nil
}

func newRedisDriver(client taskEnqueuer, inspector taskInspector, queueName string) *RedisDriver {
	if strings.TrimSpace(queueName) == "" {
		queueName = DefaultQueueName
	}
	return &RedisDriver{
		client:    client,
		inspector: inspector,
		queue:     queueName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (d *RedisDriver) Name() string { return DriverRedis }

func (d *RedisDriver) QueueName() string { return d.queue }

func (d *RedisDriver) Enqueue(ctx context.Context, in EnqueueInput) (JobRecord, error) {
	raw, err := rawPayload(in.Payload)
	if err != nil {
		return JobRecord{}, fmt.Errorf("queue: encode payload: %w", err)
	}

	now := d.now()
	body := TaskPayload{
		WebhookID:     in.WebhookID,
		TopicKey:      in.TopicKey,
		ShopDomain:    in.ShopDomain,
		Payload:       raw,
		PayloadDigest: Digest(in.Payload),
		EnqueuedAt:    now,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return JobRecord{}, fmt.Errorf("queue: encode task: %w", err)
	}

	id := uuid.NewString()
	task := asynq.NewTask(TaskType(in.TopicKey), b)

	info, err := d.client.EnqueueContext(
		ctx, task,
		asynq.Queue(d.queue),
		asynq.TaskID(id),
		asynq.MaxRetry(MaxRetry),
		asynq.Retention(completedRetention),
	)
	if err != nil {
		return JobRecord{}, fmt.Errorf("queue: enqueue %s: %w", task.Type(), err)
	}

	if info != nil && info.ID != "" {
		id = info.ID
	}

	return JobRecord{
		ID:            id,
		WebhookID:     body.WebhookID,
		TopicKey:      body.TopicKey,
		ShopDomain:    body.ShopDomain,
		PayloadDigest: body.PayloadDigest,
		Status:        domain.JobStatusPending,
		EnqueuedAt:    now,
		UpdatedAt:     now,
	}, nil
}

func (d *RedisDriver) Mark(ctx context.Context, id string, status domain.JobStatus, errMsg string) (JobRecord, bool, error) {
	return JobRecord{}, false, ErrManualMarkDisabled
}

func (d *RedisDriver) Snapshot(ctx context.Context) ([]JobRecord, error) {
	lists := []listFunc{
		d.inspector.ListPendingTasks,
		d.inspector.ListScheduledTasks,
		d.inspector.ListActiveTasks,
		d.inspector.ListCompletedTasks,
		d.inspector.ListRetryTasks,
		d.inspector.ListArchivedTasks,
	}

	out := make([]JobRecord, 0, snapshotLimit)
	for _, list := range lists {
		if len(out) >= snapshotLimit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		infos, err := list(d.queue, asynq.PageSize(snapshotLimit-len(out)))
		if err != nil {
			if isQueueNotFound(err) {
				return out, nil
			}
			return nil, err
		}
		for _, info := range infos {
			out = append(out, jobFromTaskInfo(info))
			if len(out) >= snapshotLimit {
				break
			}
		}
	}
	return out, nil
}

func (d *RedisDriver) Clear(ctx context.Context) error {
	deletes := []func(string) (int, error){
		d.inspector.DeleteAllPendingTasks,
		d.inspector.DeleteAllScheduledTasks,
		d.inspector.DeleteAllRetryTasks,
		d.inspector.DeleteAllArchivedTasks,
		d.inspector.DeleteAllCompletedTasks,
	}
	for _, del := range deletes {
		if _, err := del(d.queue); err != nil && !isQueueNotFound(err) {
			return err
		}
	}
	return nil
}

// Purge deletes matching tasks one at a time. A failure part way through
// leaves earlier deletions in place; the count removed so far is returned
// together with the error.
func (d *RedisDriver) Purge(ctx context.Context, shopDomain string) (int, error) {
	shop := strings.TrimSpace(shopDomain)

	var targets []string
	collect := func(list listFunc) error {
		for page := 1; ; page++ {
			infos, err := list(d.queue, asynq.PageSize(listPageSize), asynq.Page(page))
			if err != nil {
				return err
			}
			for _, info := range infos {
				if strings.EqualFold(decodeTaskPayload(info).ShopDomain, shop) {
					targets = append(targets, info.ID)
				}
			}
			if len(infos) < listPageSize {
				return nil
			}
		}
	}

	for _, list := range []listFunc{
		d.inspector.ListPendingTasks,
		d.inspector.ListScheduledTasks,
		d.inspector.ListRetryTasks,
	} {
		if err := collect(list); err != nil {
			if isQueueNotFound(err) {
				return 0, nil
			}
			return 0, err
		}
	}

	groups, err := d.inspector.Groups(d.queue)
	if err != nil && !isQueueNotFound(err) {
		return 0, err
	}
	for _, g := range groups {
		group := g.Group
		err := collect(func(q string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
			return d.inspector.ListAggregatingTasks(q, group, opts...)
		})
		if err != nil {
			return 0, err
		}
	}

	removed := 0
	for _, id := range targets {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := d.inspector.DeleteTask(d.queue, id); err != nil {
			return removed, fmt.Errorf("queue: purge %s: removed %d before failure: %w", shop, removed, err)
		}
		removed++
	}
	return removed, nil
}

func (d *RedisDriver) Close() error {
	var firstErr error
	if err := d.client.Close(); err != nil {
		firstErr = err
	}
	if err := d.inspector.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func isQueueNotFound(err error) bool {
	return errors.Is(err, asynq.ErrQueueNotFound)
}

func decodeTaskPayload(info *asynq.TaskInfo) TaskPayload {
	var p TaskPayload
	if info == nil {
		return p
	}
	_ = json.Unmarshal(info.Payload, &p)
	return p
}

// mapTaskStatus folds asynq task state into the four job statuses.
func mapTaskStatus(info *asynq.TaskInfo) domain.JobStatus {
	switch {
	case !info.CompletedAt.IsZero():
		return domain.JobStatusCompleted
	case info.LastErr != "":
		return domain.JobStatusFailed
	case info.State == asynq.TaskStateActive:
		return domain.JobStatusProcessing
	default:
		return domain.JobStatusPending
	}
}

func jobFromTaskInfo(info *asynq.TaskInfo) JobRecord {
	p := decodeTaskPayload(info)

	topic := p.TopicKey
	if topic == "" {
		topic, _ = TopicFromTaskType(info.Type)
	}

	updated := p.EnqueuedAt
	for _, t := range []time.Time{info.LastFailedAt, info.CompletedAt} {
		if t.After(updated) {
			updated = t
		}
	}

	return JobRecord{
		ID:            info.ID,
		WebhookID:     p.WebhookID,
		TopicKey:      topic,
		ShopDomain:    p.ShopDomain,
		PayloadDigest: p.PayloadDigest,
		Attempts:      info.Retried,
		Status:        mapTaskStatus(info),
		EnqueuedAt:    p.EnqueuedAt,
		UpdatedAt:     updated.UTC(),
		Error:         info.LastErr,
	}
}
