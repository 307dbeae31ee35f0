package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/state"
)

// IntegrationJobs tags connection events written by follow-up jobs.
const IntegrationJobs = "webhook_jobs"

// FollowUpProcessor completes the follow-up jobs the webhook handlers enqueue
// by recording them against the shop's connection history.
type FollowUpProcessor struct {
	Store state.Store
	Log   *zap.Logger
}

// action reads the "action" field; digests may be truncated so a decode
// failure is not an error.
func action(payload json.RawMessage) string {
	var body struct {
		Action string `json:"action"`
	}
	if len(payload) == 0 || json.Unmarshal(payload, &body) != nil {
		return ""
	}
	return body.Action
}

func (p *FollowUpProcessor) Execute(ctx context.Context, job Job) error {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	jobID := JobID(ctx)
	if jobID == "" {
		jobID = job.ID
	}
	log = log.With(zap.String("job_id", jobID))

	store, ok, err := p.Store.FindStoreByDomain(ctx, job.ShopDomain)
	if err != nil {
		return fmt.Errorf("find store %s: %w", job.ShopDomain, err)
	}
	if !ok {
		log.Info("follow-up for unknown shop dropped", zap.String("shop", job.ShopDomain))
		return nil
	}

	kind := action(job.Payload)
	if kind == "" {
		kind = "job_processed"
	}

	_, err = p.Store.InsertConnectionEvent(ctx, state.ConnectionEventRecord{
		StoreID:     store.ID,
		Integration: IntegrationJobs,
		Kind:        kind,
		Message:     fmt.Sprintf("%s job %s (attempt %d)", job.TopicKey, jobID, job.Attempt),
	})
	if err != nil {
		return fmt.Errorf("record follow-up: %w", err)
	}

	log.Debug("follow-up job done",
		zap.String("topic_key", string(job.TopicKey)),
		zap.String("action", kind),
	)
	return nil
}
