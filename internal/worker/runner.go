package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/domain"
	"github.com/ETAnderson/merchantdesk/internal/queue"
)

// PendingQueue is the part of the in-process queue the Runner drives.
type PendingQueue interface {
	ClaimPending(ctx context.Context, limit int) ([]queue.JobRecord, error)
	Mark(ctx context.Context, id string, status domain.JobStatus, errMsg string) (queue.JobRecord, bool, error)
}

// Runner drains the in-process queue on a poll interval.
type Runner struct {
	Queue       PendingQueue
	Executor    Executor
	PollEvery   time.Duration
	MaxPerClaim int
	Log         *zap.Logger
}

func (r Runner) Run(ctx context.Context) error {
	if r.Queue == nil {
		return errors.New("queue is nil")
	}
	if r.Executor == nil {
		return errors.New("executor is nil")
	}
	if r.PollEvery <= 0 {
		r.PollEvery = 500 * time.Millisecond
	}
	if r.MaxPerClaim <= 0 {
		r.MaxPerClaim = 10
	}
	if r.Log == nil {
		r.Log = zap.NewNop()
	}

	ticker := time.NewTicker(r.PollEvery)
	defer ticker.Stop()

	// one immediate pass
	if err := r.tick(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.tick(ctx); err != nil {
				return err
			}
		}
	}
}

func (r Runner) tick(ctx context.Context) error {
	claims, err := r.Queue.ClaimPending(ctx, r.MaxPerClaim)
	if err != nil {
		return err
	}

	for _, c := range claims {
		job := Job{
			ID:         c.ID,
			WebhookID:  c.WebhookID,
			TopicKey:   c.TopicKey,
			ShopDomain: c.ShopDomain,
			Payload:    []byte(c.PayloadDigest),
			Attempt:    c.Attempts + 1,
		}

		jobCtx := WithShop(WithJobID(ctx, c.ID), c.ShopDomain)
		if err := r.Executor.Execute(jobCtx, job); err != nil {
			r.Log.Warn("follow-up job failed",
				zap.String("job_id", c.ID),
				zap.String("topic_key", string(c.TopicKey)),
				zap.Error(err),
			)
			_, _, _ = r.Queue.Mark(ctx, c.ID, domain.JobStatusFailed, err.Error())
			continue
		}

		_, _, _ = r.Queue.Mark(ctx, c.ID, domain.JobStatusCompleted, "")
	}

	return nil
}
