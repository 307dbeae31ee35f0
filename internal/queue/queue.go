package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

// MaxDigestLength bounds JobRecord.PayloadDigest, ellipsis included.
const MaxDigestLength = 512

var (
	ErrRedisURLRequired   = errors.New("queue: redis driver selected but no redis url configured (WEBHOOK_QUEUE_REDIS_URL or UPSTASH_REDIS_URL)")
	ErrManualMarkDisabled = errors.New("queue: manual job status updates are disabled when the redis queue owns job state")
	ErrInvalidStatus      = errors.New("queue: invalid job status")
)

type JobRecord struct {
	ID            string           `json:"id"`
	WebhookID     string           `json:"webhookId,omitempty"`
	TopicKey      domain.TopicKey  `json:"topicKey"`
	ShopDomain    string           `json:"shopDomain"`
	PayloadDigest string           `json:"payloadDigest"`
	Attempts      int              `json:"attempts"`
	Status        domain.JobStatus `json:"status"`
	EnqueuedAt    time.Time        `json:"enqueuedAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	Error         string           `json:"error,omitempty"`
}

type EnqueueInput struct {
	WebhookID  string
	TopicKey   domain.TopicKey
	ShopDomain string
	Payload    any
}

// Driver is the job queue contract shared by the in-process and Redis
// implementations.
type Driver interface {
	Name() string
	Enqueue(ctx context.Context, in EnqueueInput) (JobRecord, error)
	// Mark sets a job status. found is false when no job has the id.
	Mark(ctx context.Context, id string, status domain.JobStatus, errMsg string) (rec JobRecord, found bool, err error)
	Snapshot(ctx context.Context) ([]JobRecord, error)
	Clear(ctx context.Context) error
	// Purge removes the jobs for a shop and returns how many were removed.
	Purge(ctx context.Context, shopDomain string) (int, error)
	Close() error
}

// Digest renders payload as JSON, truncated to MaxDigestLength characters.
func Digest(payload any) string {
	if payload == nil {
		return ""
	}

	var s string
	switch v := payload.(type) {
	case json.RawMessage:
		s = string(v)
	case []byte:
		s = string(v)
	case string:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		s = string(b)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		s = string(b)
	}

	if utf8.RuneCountInString(s) <= MaxDigestLength {
		return s
	}

	runes := []rune(s)
	return string(runes[:MaxDigestLength-3]) + "..."
}
