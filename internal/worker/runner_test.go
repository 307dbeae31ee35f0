package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/ETAnderson/merchantdesk/internal/api/shopctx"
	"github.com/ETAnderson/merchantdesk/internal/domain"
	"github.com/ETAnderson/merchantdesk/internal/queue"
)

type execFunc func(ctx context.Context, job Job) error

func (f execFunc) Execute(ctx context.Context, job Job) error { return f(ctx, job) }

func TestRunner_RequiresQueue(t *testing.T) {
	err := Runner{}.Run(context.Background())
	if err == nil {
		t.Fatalf("expected error when queue is nil")
	}
}

func TestRunner_Tick_CompletesJobWithContext(t *testing.T) {
	q := queue.NewMemoryDriver()
	rec, err := q.Enqueue(context.Background(), queue.EnqueueInput{
		TopicKey:   domain.TopicOrdersCreate,
		ShopDomain: "shop-a.myshopify.com",
		Payload:    map[string]any{"action": "order_flagged"},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	calls := 0
	r := Runner{
		Queue: q,
		Executor: execFunc(func(ctx context.Context, job Job) error {
			calls++
			if job.ID != rec.ID {
				t.Fatalf("expected job id %q got %q", rec.ID, job.ID)
			}
			if got := JobID(ctx); got != rec.ID {
				t.Fatalf("expected ctx job id %q got %q", rec.ID, got)
			}
			if got := shopctx.Shop(ctx); got != "shop-a.myshopify.com" {
				t.Fatalf("expected ctx shop, got %q", got)
			}
			if action(job.Payload) != "order_flagged" {
				t.Fatalf("expected payload digest to carry action, got %s", job.Payload)
			}
			return nil
		}),
	}

	if err := r.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected Execute called once, got %d", calls)
	}

	jobs, _ := q.Snapshot(context.Background())
	if jobs[0].Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %q", jobs[0].Status)
	}

	// nothing left to claim
	if err := r.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no second execution, got %d", calls)
	}
}

func TestRunner_Tick_FailMarksFailed(t *testing.T) {
	q := queue.NewMemoryDriver()
	_, _ = q.Enqueue(context.Background(), queue.EnqueueInput{TopicKey: domain.TopicProductsUpdate, ShopDomain: "s"})

	r := Runner{
		Queue: q,
		Executor: execFunc(func(ctx context.Context, job Job) error {
			return errors.New("boom")
		}),
	}
	if err := r.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	jobs, _ := q.Snapshot(context.Background())
	if jobs[0].Status != domain.JobStatusFailed || jobs[0].Error != "boom" || jobs[0].Attempts != 1 {
		t.Fatalf("unexpected job: %+v", jobs[0])
	}
}

func TestRunner_Tick_RespectsMaxPerClaim(t *testing.T) {
	q := queue.NewMemoryDriver()
	for i := 0; i < 5; i++ {
		_, _ = q.Enqueue(context.Background(), queue.EnqueueInput{TopicKey: domain.TopicOrdersCreate, ShopDomain: "s"})
	}

	calls := 0
	r := Runner{Queue: q, MaxPerClaim: 2, Executor: execFunc(func(ctx context.Context, job Job) error {
		calls++
		return nil
	})}
	if err := r.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 jobs per tick, got %d", calls)
	}
}
