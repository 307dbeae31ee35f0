package worker

import (
	"context"
	"encoding/json"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

// Job is one follow-up job handed to an Executor.
type Job struct {
	ID         string
	WebhookID  string
	TopicKey   domain.TopicKey
	ShopDomain string
	Payload    json.RawMessage
	Attempt    int
}

type Executor interface {
	Execute(ctx context.Context, job Job) error
}
