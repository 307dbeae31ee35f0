package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/dedupe"
	"github.com/ETAnderson/merchantdesk/internal/domain"
	"github.com/ETAnderson/merchantdesk/internal/state"
)

// IntegrationWebhooks is the connection-event integration name for webhook traffic.
const IntegrationWebhooks = "shopify_webhooks"

const maxErrorLength = 512

var (
	ErrMissingWebhookID = errors.New("missing webhook id")
	ErrUnsupportedTopic = errors.New("unsupported webhook topic")
)

// UnsupportedTopicError carries the rejected topic; it matches ErrUnsupportedTopic.
type UnsupportedTopicError struct {
	Topic string
}

func (e *UnsupportedTopicError) Error() string {
	return "Unsupported webhook topic: " + e.Topic
}

func (e *UnsupportedTopicError) Is(target error) bool {
	return target == ErrUnsupportedTopic
}

// EventContext is one inbound webhook delivery.
type EventContext struct {
	WebhookID  string
	Shop       string
	Topic      string
	Payload    json.RawMessage
	APIVersion string
	SubTopic   string
}

type Result struct {
	Duplicate      bool            `json:"duplicate"`
	TopicKey       domain.TopicKey `json:"topicKey,omitempty"`
	WebhookEventID string          `json:"webhookEventId,omitempty"`
}

type Processor struct {
	Claimer  dedupe.Claimer
	Store    state.Store
	Registry Registry
	Log      *zap.Logger
	Now      func() time.Time
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

// Process runs one delivery through claim, status tracking and dispatch.
// The claim happens before any work so concurrent duplicates see exactly one
// winner; a failed handler releases it so Shopify's redelivery can retry.
func (p *Processor) Process(ctx context.Context, evt EventContext) (Result, error) {
	evt.WebhookID = strings.TrimSpace(evt.WebhookID)
	evt.Shop = strings.ToLower(strings.TrimSpace(evt.Shop))

	if evt.WebhookID == "" {
		return Result{}, ErrMissingWebhookID
	}

	key, ok := ResolveKey(evt.Topic)
	if !ok {
		return Result{}, &UnsupportedTopicError{Topic: evt.Topic}
	}

	ctx, span := otel.Tracer("merchantdesk/webhooks").Start(ctx, "webhooks.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.id", evt.WebhookID),
		attribute.String("webhook.topic_key", string(key)),
		attribute.String("shop.domain", evt.Shop),
	)

	log := p.logger().With(
		zap.String("webhook_id", evt.WebhookID),
		zap.String("topic_key", string(key)),
		zap.String("shop", evt.Shop),
	)

	dup, err := p.Claimer.Claim(ctx, evt.WebhookID, evt.Shop, evt.Topic)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		return Result{}, fmt.Errorf("claim webhook %s: %w", evt.WebhookID, err)
	}
	if dup {
		log.Info("duplicate webhook delivery skipped")
		span.SetAttributes(attribute.Bool("webhook.duplicate", true))
		return Result{Duplicate: true, TopicKey: key}, nil
	}

	res, err := p.run(ctx, evt, key, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		if relErr := p.Claimer.Release(ctx, evt.WebhookID); relErr != nil {
			log.Error("release webhook claim", zap.Error(relErr))
		}
		return res, err
	}
	return res, nil
}

func (p *Processor) run(ctx context.Context, evt EventContext, key domain.TopicKey, log *zap.Logger) (Result, error) {
	res := Result{TopicKey: key}

	store, err := p.ensureStore(ctx, evt.Shop)
	if err != nil {
		return res, fmt.Errorf("resolve store %s: %w", evt.Shop, err)
	}

	rec, err := p.Store.CreateWebhookEvent(ctx, state.WebhookEventRecord{
		WebhookID:  evt.WebhookID,
		ShopDomain: evt.Shop,
		Topic:      evt.Topic,
		TopicKey:   key,
		APIVersion: evt.APIVersion,
		Status:     domain.WebhookStatusReceived,
	})
	if err != nil {
		return res, fmt.Errorf("create webhook event: %w", err)
	}
	res.WebhookEventID = rec.ID

	if err := p.Store.MarkWebhookEvent(ctx, rec.ID, domain.WebhookStatusProcessing, ""); err != nil {
		return res, fmt.Errorf("mark webhook processing: %w", err)
	}

	payload := map[string]any{}
	if len(evt.Payload) > 0 {
		dec := json.NewDecoder(bytes.NewReader(evt.Payload))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return res, p.fail(ctx, rec.ID, store.ID, log, fmt.Errorf("decode payload: %w", err))
		}
	}

	handler, ok := p.Registry.Get(key)
	if !ok {
		return res, p.fail(ctx, rec.ID, store.ID, log, fmt.Errorf("no handler registered for %s", key))
	}

	err = handler(ctx, HandlerInput{
		EventContext:   evt,
		TopicKey:       key,
		PayloadObject:  payload,
		WebhookEventID: rec.ID,
	})
	if err != nil {
		return res, p.fail(ctx, rec.ID, store.ID, log, fmt.Errorf("webhook %s (%s): %w", evt.WebhookID, key, err))
	}

	if err := p.Store.MarkWebhookEvent(ctx, rec.ID, domain.WebhookStatusSucceeded, ""); err != nil {
		return res, fmt.Errorf("mark webhook succeeded: %w", err)
	}

	if err := p.Store.UpsertWebhookRegistration(ctx, state.WebhookRegistrationRecord{
		ShopDomain:     evt.Shop,
		TopicKey:       key,
		Topic:          evt.Topic,
		LastWebhookID:  evt.WebhookID,
		LastReceivedAt: p.now(),
	}); err != nil {
		log.Warn("upsert webhook registration", zap.Error(err))
	}
	p.recordConnection(ctx, store.ID, "webhook_processed", string(key), log)

	log.Info("webhook processed", zap.String("webhook_event_id", rec.ID))
	return res, nil
}

func (p *Processor) ensureStore(ctx context.Context, shop string) (state.StoreRecord, error) {
	rec, ok, err := p.Store.FindStoreByDomain(ctx, shop)
	if err != nil {
		return state.StoreRecord{}, err
	}
	if ok {
		return rec, nil
	}
	return p.Store.UpsertStore(ctx, state.StoreRecord{Domain: shop, MyShopifyDomain: shop})
}

func (p *Processor) fail(ctx context.Context, eventID, storeID string, log *zap.Logger, cause error) error {
	msg := truncateError(cause.Error())
	if err := p.Store.MarkWebhookEvent(ctx, eventID, domain.WebhookStatusFailed, msg); err != nil {
		log.Error("mark webhook failed", zap.Error(err))
	}
	p.recordConnection(ctx, storeID, "webhook_failed", msg, log)
	log.Error("webhook handler failed", zap.Error(cause))
	return cause
}

func (p *Processor) recordConnection(ctx context.Context, storeID, kind, message string, log *zap.Logger) {
	_, err := p.Store.InsertConnectionEvent(ctx, state.ConnectionEventRecord{
		StoreID:     storeID,
		Integration: IntegrationWebhooks,
		Kind:        kind,
		Message:     message,
		CreatedAt:   p.now(),
	})
	if err != nil {
		log.Warn("record connection event", zap.Error(err))
	}
}

func truncateError(s string) string {
	if utf8.RuneCountInString(s) <= maxErrorLength {
		return s
	}
	r := []rune(s)
	return string(r[:maxErrorLength-3]) + "..."
}
