package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/webhooks"
)

const maxWebhookBody = 5 << 20

// WebhookHandler receives Shopify deliveries on POST /webhooks/{topic...}.
// Signature verification happens upstream.
type WebhookHandler struct {
	Processor *webhooks.Processor
	Log       *zap.Logger
}

func (h WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	topic := r.Header.Get("X-Shopify-Topic")
	if topic == "" {
		topic = r.PathValue("topic")
	}

	evt := webhooks.EventContext{
		WebhookID:  r.Header.Get("X-Shopify-Webhook-Id"),
		Shop:       r.Header.Get("X-Shopify-Shop-Domain"),
		Topic:      topic,
		Payload:    body,
		APIVersion: r.Header.Get("X-Shopify-API-Version"),
		SubTopic:   r.Header.Get("X-Shopify-Sub-Topic"),
	}

	if _, err := h.Processor.Process(r.Context(), evt); err != nil {
		switch {
		case errors.Is(err, webhooks.ErrMissingWebhookID):
			writeError(w, http.StatusBadRequest, "missing_webhook_id", err.Error())
		case errors.Is(err, webhooks.ErrUnsupportedTopic):
			writeError(w, http.StatusBadRequest, "unsupported_topic", err.Error())
		default:
			if h.Log != nil {
				h.Log.Error("webhook processing failed",
					zap.String("topic", topic),
					zap.String("shop", evt.Shop),
					zap.Error(err),
				)
			}
			writeError(w, http.StatusInternalServerError, "webhook_failed", "webhook processing failed")
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}
