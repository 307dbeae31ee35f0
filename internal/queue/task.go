package queue

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

// TaskTypePrefix prefixes every webhook follow-up task type.
const TaskTypePrefix = "webhook:"

// TaskPayload is the body stored with each Redis task. It keeps the raw
// payload for the worker and the digest for snapshots.
type TaskPayload struct {
	WebhookID     string          `json:"webhookId,omitempty"`
	TopicKey      domain.TopicKey `json:"topicKey"`
	ShopDomain    string          `json:"shopDomain"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	PayloadDigest string          `json:"payloadDigest"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
}

func TaskType(topic domain.TopicKey) string {
	return TaskTypePrefix + string(topic)
}

func TopicFromTaskType(taskType string) (domain.TopicKey, bool) {
	if !strings.HasPrefix(taskType, TaskTypePrefix) {
		return "", false
	}
	return domain.TopicKey(strings.TrimPrefix(taskType, TaskTypePrefix)), true
}

func rawPayload(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		if json.Valid(v) {
			return json.RawMessage(v), nil
		}
		return json.Marshal(string(v))
	default:
		return json.Marshal(v)
	}
}
