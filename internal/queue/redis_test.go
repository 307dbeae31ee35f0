package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

type fakeClient struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload(), State: asynq.TaskStatePending}, nil
}

func (f *fakeClient) Close() error { return nil }

type fakeInspector struct {
	byState     map[asynq.TaskState][]*asynq.TaskInfo
	aggregating map[string][]*asynq.TaskInfo

	deleted   []string
	failAfter int // DeleteTask fails once this many deletions succeeded; 0 disables
	cleared   int
}

func newFakeInspector() *fakeInspector {
	return &fakeInspector{
		byState:     make(map[asynq.TaskState][]*asynq.TaskInfo),
		aggregating: make(map[string][]*asynq.TaskInfo),
	}
}

func (f *fakeInspector) add(state asynq.TaskState, info *asynq.TaskInfo) {
	info.State = state
	f.byState[state] = append(f.byState[state], info)
}

func (f *fakeInspector) list(state asynq.TaskState) ([]*asynq.TaskInfo, error) {
	return f.byState[state], nil
}

func (f *fakeInspector) ListPendingTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.list(asynq.TaskStatePending)
}
func (f *fakeInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.list(asynq.TaskStateScheduled)
}
func (f *fakeInspector) ListActiveTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.list(asynq.TaskStateActive)
}
func (f *fakeInspector) ListCompletedTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.list(asynq.TaskStateCompleted)
}
func (f *fakeInspector) ListRetryTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.list(asynq.TaskStateRetry)
}
func (f *fakeInspector) ListArchivedTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.list(asynq.TaskStateArchived)
}
func (f *fakeInspector) ListAggregatingTasks(_ string, group string, _ ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.aggregating[group], nil
}

func (f *fakeInspector) Groups(string) ([]*asynq.GroupInfo, error) {
	var out []*asynq.GroupInfo
	for g, tasks := range f.aggregating {
		out = append(out, &asynq.GroupInfo{Group: g, Size: len(tasks)})
	}
	return out, nil
}

func (f *fakeInspector) DeleteTask(_ string, id string) error {
	if f.failAfter > 0 && len(f.deleted) >= f.failAfter {
		return errors.New("redis: connection reset")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeInspector) deleteAll(state asynq.TaskState) (int, error) {
	n := len(f.byState[state])
	delete(f.byState, state)
	f.cleared += n
	return n, nil
}

func (f *fakeInspector) DeleteAllPendingTasks(string) (int, error) {
	return f.deleteAll(asynq.TaskStatePending)
}
func (f *fakeInspector) DeleteAllScheduledTasks(string) (int, error) {
	return f.deleteAll(asynq.TaskStateScheduled)
}
func (f *fakeInspector) DeleteAllRetryTasks(string) (int, error) {
	return f.deleteAll(asynq.TaskStateRetry)
}
func (f *fakeInspector) DeleteAllArchivedTasks(string) (int, error) {
	return f.deleteAll(asynq.TaskStateArchived)
}
func (f *fakeInspector) DeleteAllCompletedTasks(string) (int, error) {
	return f.deleteAll(asynq.TaskStateCompleted)
}

func (f *fakeInspector) Close() error { return nil }

func taskInfo(t *testing.T, id, shop string) *asynq.TaskInfo {
	t.Helper()
	b, err := json.Marshal(TaskPayload{
		TopicKey:      domain.TopicOrdersCreate,
		ShopDomain:    shop,
		PayloadDigest: `{"id":1}`,
		EnqueuedAt:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return &asynq.TaskInfo{ID: id, Type: TaskType(domain.TopicOrdersCreate), Payload: b}
}

func TestRedisDriver_MarkAlwaysFails(t *testing.T) {
	d := newRedisDriver(&fakeClient{}, newFakeInspector(), "webhooks")

	for _, st := range []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusFailed, "bogus"} {
		_, _, err := d.Mark(context.Background(), "any", st, "")
		assert.ErrorIs(t, err, ErrManualMarkDisabled)
	}
}

func TestRedisDriver_EnqueueKeepsRawPayloadAndDigest(t *testing.T) {
	client := &fakeClient{}
	d := newRedisDriver(client, newFakeInspector(), "webhooks")

	rec, err := d.Enqueue(context.Background(), EnqueueInput{
		WebhookID:  "wh-1",
		TopicKey:   domain.TopicOrdersCreate,
		ShopDomain: "shop-a.myshopify.com",
		Payload:    map[string]any{"action": "order_flagged"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, domain.JobStatusPending, rec.Status)
	require.Len(t, client.tasks, 1)
	assert.Equal(t, "webhook:ORDERS_CREATE", client.tasks[0].Type())

	var body TaskPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &body))
	assert.JSONEq(t, `{"action":"order_flagged"}`, string(body.Payload))
	assert.Equal(t, `{"action":"order_flagged"}`, body.PayloadDigest)
	assert.Equal(t, "wh-1", body.WebhookID)
}

func TestRedisDriver_EnqueueError(t *testing.T) {
	d := newRedisDriver(&fakeClient{err: errors.New("down")}, newFakeInspector(), "")
	_, err := d.Enqueue(context.Background(), EnqueueInput{TopicKey: domain.TopicOrdersCreate})
	assert.Error(t, err)
	assert.Equal(t, "webhooks", d.QueueName())
}

func TestMapTaskStatus(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		info asynq.TaskInfo
		want domain.JobStatus
	}{
		{"completed wins", asynq.TaskInfo{CompletedAt: now, LastErr: "old", State: asynq.TaskStateCompleted}, domain.JobStatusCompleted},
		{"error means failed", asynq.TaskInfo{LastErr: "boom", State: asynq.TaskStateRetry}, domain.JobStatusFailed},
		{"active is processing", asynq.TaskInfo{State: asynq.TaskStateActive}, domain.JobStatusProcessing},
		{"scheduled is pending", asynq.TaskInfo{State: asynq.TaskStateScheduled}, domain.JobStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := tc.info
			assert.Equal(t, tc.want, mapTaskStatus(&info))
		})
	}
}

func TestRedisDriver_SnapshotCapsAt50(t *testing.T) {
	insp := newFakeInspector()
	for i := 0; i < 40; i++ {
		insp.add(asynq.TaskStatePending, taskInfo(t, fmt.Sprintf("p-%d", i), "a"))
	}
	for i := 0; i < 20; i++ {
		info := taskInfo(t, fmt.Sprintf("r-%d", i), "a")
		info.LastErr = "boom"
		info.Retried = 1
		insp.add(asynq.TaskStateRetry, info)
	}
	active := taskInfo(t, "act", "a")
	insp.add(asynq.TaskStateActive, active)

	d := newRedisDriver(&fakeClient{}, insp, "webhooks")
	jobs, err := d.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 50)

	assert.Equal(t, "p-0", jobs[0].ID)
	assert.Equal(t, domain.JobStatusPending, jobs[0].Status)
	assert.Equal(t, "act", jobs[40].ID)
	assert.Equal(t, domain.JobStatusProcessing, jobs[40].Status)
	assert.Equal(t, domain.JobStatusFailed, jobs[49].Status)
	assert.Equal(t, 1, jobs[49].Attempts)
}

func TestRedisDriver_PurgeMatchesCaseInsensitively(t *testing.T) {
	insp := newFakeInspector()
	insp.add(asynq.TaskStatePending, taskInfo(t, "a1", "shop-a.myshopify.com"))
	insp.add(asynq.TaskStateScheduled, taskInfo(t, "a2", "shop-a.myshopify.com"))
	insp.add(asynq.TaskStateRetry, taskInfo(t, "a3", "Shop-A.myshopify.com"))
	insp.add(asynq.TaskStatePending, taskInfo(t, "b1", "shop-b.myshopify.com"))
	insp.add(asynq.TaskStatePending, taskInfo(t, "b2", "shop-b.myshopify.com"))
	// active tasks are left to finish
	insp.add(asynq.TaskStateActive, taskInfo(t, "a4", "shop-a.myshopify.com"))

	d := newRedisDriver(&fakeClient{}, insp, "webhooks")
	removed, err := d.Purge(context.Background(), "SHOP-A.MYSHOPIFY.COM")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, insp.deleted)
}

func TestRedisDriver_PurgeIncludesAggregatingGroups(t *testing.T) {
	insp := newFakeInspector()
	insp.aggregating["digest"] = []*asynq.TaskInfo{taskInfo(t, "g1", "shop-a.myshopify.com")}

	d := newRedisDriver(&fakeClient{}, insp, "webhooks")
	removed, err := d.Purge(context.Background(), "shop-a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestRedisDriver_PartialPurgeReportsRemovedCount(t *testing.T) {
	insp := newFakeInspector()
	for i := 0; i < 3; i++ {
		insp.add(asynq.TaskStatePending, taskInfo(t, fmt.Sprintf("a%d", i), "shop-a.myshopify.com"))
	}
	insp.failAfter = 2

	d := newRedisDriver(&fakeClient{}, insp, "webhooks")
	removed, err := d.Purge(context.Background(), "shop-a.myshopify.com")
	require.Error(t, err)
	assert.Equal(t, 2, removed)
}

func TestRedisDriver_Clear(t *testing.T) {
	insp := newFakeInspector()
	insp.add(asynq.TaskStatePending, taskInfo(t, "a1", "a"))
	insp.add(asynq.TaskStateCompleted, taskInfo(t, "a2", "a"))
	insp.add(asynq.TaskStateArchived, taskInfo(t, "a3", "a"))

	d := newRedisDriver(&fakeClient{}, insp, "webhooks")
	require.NoError(t, d.Clear(context.Background()))
	assert.Equal(t, 3, insp.cleared)
}
