package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ETAnderson/merchantdesk/internal/domain"
	"github.com/ETAnderson/merchantdesk/internal/queue"
	"github.com/ETAnderson/merchantdesk/internal/state"
	"github.com/ETAnderson/merchantdesk/internal/webhooks"
)

const snapshotLimit = 50

// QueueHandler is the operator view of the webhook job queue.
type QueueHandler struct {
	Queue queue.Driver
	Store state.Store
}

type enqueueRequest struct {
	WebhookID  string          `json:"webhookId"`
	TopicKey   string          `json:"topicKey"`
	Topic      string          `json:"topic"`
	Shop       string          `json:"shop"`
	ShopDomain string          `json:"shopDomain"`
	Payload    json.RawMessage `json:"payload"`
}

type enqueueFields struct {
	Topic      string `validate:"required"`
	ShopDomain string `validate:"required,max=255"`
	WebhookID  string `validate:"max=255"`
}

type markRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required,oneof=pending processing completed failed"`
	Error  string `json:"error" validate:"max=2000"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (h QueueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.snapshot(w, r)
	case http.MethodPost:
		h.enqueue(w, r)
	case http.MethodPatch:
		h.mark(w, r)
	case http.MethodDelete:
		if err := h.Queue.Clear(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "clear_failed", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h QueueHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobs, err := h.Queue.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "snapshot_failed", err.Error())
		return
	}
	regs, err := h.Store.ListWebhookRegistrations(ctx, snapshotLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_registrations_failed", err.Error())
		return
	}
	flags, err := h.Store.ListOrderFlags(ctx, snapshotLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_order_flags_failed", err.Error())
		return
	}
	velocity, err := h.Store.ListProductVelocity(ctx, snapshotLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_product_velocity_failed", err.Error())
		return
	}

	if jobs == nil {
		jobs = []queue.JobRecord{}
	}
	if regs == nil {
		regs = []state.WebhookRegistrationRecord{}
	}
	if flags == nil {
		flags = []state.OrderFlagRecord{}
	}
	if velocity == nil {
		velocity = []state.ProductVelocityRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"driver":          h.Queue.Name(),
		"queue":           jobs,
		"registrations":   regs,
		"orderFlags":      flags,
		"productVelocity": velocity,
	})
}

func (h QueueHandler) enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON object")
		return
	}

	fields := enqueueFields{
		Topic:      firstNonEmpty(req.TopicKey, req.Topic),
		ShopDomain: strings.ToLower(firstNonEmpty(req.ShopDomain, req.Shop)),
		WebhookID:  strings.TrimSpace(req.WebhookID),
	}
	if err := validate.Struct(fields); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", validationMessage(err))
		return
	}

	key, ok := webhooks.ResolveKey(fields.Topic)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "unsupported_topic", (&webhooks.UnsupportedTopicError{Topic: fields.Topic}).Error())
		return
	}

	var payload any
	if len(req.Payload) > 0 && string(req.Payload) != "null" {
		payload = req.Payload
	}

	job, err := h.Queue.Enqueue(r.Context(), queue.EnqueueInput{
		WebhookID:  fields.WebhookID,
		TopicKey:   key,
		ShopDomain: fields.ShopDomain,
		Payload:    payload,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "enqueue_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"job": job})
}

func (h QueueHandler) mark(w http.ResponseWriter, r *http.Request) {
	if h.Queue.Name() == queue.DriverRedis {
		writeError(w, http.StatusConflict, "manual_mark_disabled", queue.ErrManualMarkDisabled.Error())
		return
	}

	var req markRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON object")
		return
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", validationMessage(err))
		return
	}

	job, found, err := h.Queue.Mark(r.Context(), req.ID, domain.JobStatus(req.Status), req.Error)
	switch {
	case errors.Is(err, queue.ErrManualMarkDisabled):
		writeError(w, http.StatusConflict, "manual_mark_disabled", err.Error())
		return
	case errors.Is(err, queue.ErrInvalidStatus):
		writeError(w, http.StatusUnprocessableEntity, "invalid_status", err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "mark_failed", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}
