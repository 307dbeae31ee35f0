package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ETAnderson/merchantdesk/internal/domain"
	"github.com/ETAnderson/merchantdesk/internal/queue"
	"github.com/ETAnderson/merchantdesk/internal/state"
)

type redisNamedDriver struct {
	*queue.MemoryDriver
}

func (redisNamedDriver) Name() string { return queue.DriverRedis }

func (redisNamedDriver) Mark(ctx context.Context, id string, status domain.JobStatus, errMsg string) (queue.JobRecord, bool, error) {
	return queue.JobRecord{}, false, queue.ErrManualMarkDisabled
}

func TestQueueHandler_PatchConflictsUnderRedis(t *testing.T) {
	h := QueueHandler{Queue: redisNamedDriver{queue.NewMemoryDriver()}, Store: state.NewMemoryStore()}

	req := httptest.NewRequest(http.MethodPatch, "/queue/webhooks", bytes.NewBufferString(`{"id":"j1","status":"completed"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestQueueHandler_MethodNotAllowed(t *testing.T) {
	h := QueueHandler{Queue: queue.NewMemoryDriver(), Store: state.NewMemoryStore()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/queue/webhooks", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestQueueHandler_EmptySnapshotUsesArrays(t *testing.T) {
	h := QueueHandler{Queue: queue.NewMemoryDriver(), Store: state.NewMemoryStore()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queue/webhooks", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := `{"driver":"memory","orderFlags":[],"productVelocity":[],"queue":[],"registrations":[]}` + "\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestQueueHandler_PostNullPayload(t *testing.T) {
	q := queue.NewMemoryDriver()
	h := QueueHandler{Queue: q, Store: state.NewMemoryStore()}

	req := httptest.NewRequest(http.MethodPost, "/queue/webhooks",
		bytes.NewBufferString(`{"topic":"app/uninstalled","shop":"shop-a.myshopify.com","payload":null}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	jobs, _ := q.Snapshot(context.Background())
	if len(jobs) != 1 || jobs[0].PayloadDigest != "" || jobs[0].TopicKey != domain.TopicAppUninstalled {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}
