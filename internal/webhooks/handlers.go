package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/domain"
	"github.com/ETAnderson/merchantdesk/internal/queue"
	"github.com/ETAnderson/merchantdesk/internal/state"
)

const (
	FlagHighValue           = "high_value"
	FlagPaymentPending      = "payment_pending"
	FlagAwaitingFulfillment = "awaiting_fulfillment"
	FlagDeliveryException   = "delivery_exception"

	// HighValueThreshold is the order total at which an order is flagged.
	HighValueThreshold = 500.0
)

var ErrMissingOrderID = errors.New("webhook payload missing order id")
var ErrMissingProductID = errors.New("webhook payload missing product id")

type HandlerInput struct {
	EventContext
	TopicKey       domain.TopicKey
	PayloadObject  map[string]any
	WebhookEventID string
}

type Handler func(ctx context.Context, in HandlerInput) error

// Handlers holds the topic mapping functions and what they write to.
type Handlers struct {
	Store state.Store
	Queue queue.Driver
	Log   *zap.Logger
	Now   func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *Handlers) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *Handlers) enqueueFollowUp(ctx context.Context, in HandlerInput, payload map[string]any) error {
	_, err := h.Queue.Enqueue(ctx, queue.EnqueueInput{
		WebhookID:  in.WebhookID,
		TopicKey:   in.TopicKey,
		ShopDomain: in.Shop,
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue follow-up: %w", err)
	}
	return nil
}

func (h *Handlers) existingOrder(ctx context.Context, shop, id string) (state.OrderFlagRecord, error) {
	rec, ok, err := h.Store.GetOrderFlag(ctx, shop, id)
	if err != nil {
		return state.OrderFlagRecord{}, err
	}
	if !ok {
		rec = state.OrderFlagRecord{ShopDomain: shop, OrderID: id}
	}
	return rec, nil
}

func nonNilFlags(flags []string) []string {
	if flags == nil {
		return []string{}
	}
	return flags
}

func (h *Handlers) OrdersCreate(ctx context.Context, in HandlerInput) error {
	p := in.PayloadObject
	id := orderID(p)
	if id == "" {
		return ErrMissingOrderID
	}

	total, _ := pickNumber(p, "total_price", "current_total_price", "totalPrice")
	financial := strings.ToLower(pickString(p, "financial_status", "displayFinancialStatus"))
	fulfillment := strings.ToLower(pickString(p, "fulfillment_status", "displayFulfillmentStatus"))

	flags := []string{}
	if total >= HighValueThreshold {
		flags = append(flags, FlagHighValue)
	}
	switch financial {
	case "pending", "authorized", "partially_paid":
		flags = append(flags, FlagPaymentPending)
	}
	if fulfillment == "" || fulfillment == "unfulfilled" {
		flags = append(flags, FlagAwaitingFulfillment)
	}

	rec := state.OrderFlagRecord{
		ShopDomain:        in.Shop,
		OrderID:           id,
		OrderName:         pickString(p, "name", "order_number"),
		FinancialStatus:   financial,
		FulfillmentStatus: fulfillment,
		TotalAmount:       round2(total),
		Currency:          strings.ToUpper(pickString(p, "currency", "presentment_currency")),
		Flags:             flags,
		UpdatedAt:         h.now(),
	}
	if err := h.Store.UpsertOrderFlag(ctx, rec); err != nil {
		return fmt.Errorf("upsert order flag: %w", err)
	}

	return h.enqueueFollowUp(ctx, in, map[string]any{
		"action":  "order_flagged",
		"orderId": id,
		"flags":   flags,
	})
}

func (h *Handlers) OrdersFulfilled(ctx context.Context, in HandlerInput) error {
	p := in.PayloadObject
	id := orderID(p)
	if id == "" {
		return ErrMissingOrderID
	}

	rec, err := h.existingOrder(ctx, in.Shop, id)
	if err != nil {
		return err
	}
	if name := pickString(p, "name", "order_number"); name != "" {
		rec.OrderName = name
	}
	rec.FulfillmentStatus = "fulfilled"
	rec.Flags = nonNilFlags(removeFlag(rec.Flags, FlagAwaitingFulfillment))
	rec.UpdatedAt = h.now()

	if err := h.Store.UpsertOrderFlag(ctx, rec); err != nil {
		return fmt.Errorf("upsert order flag: %w", err)
	}

	return h.enqueueFollowUp(ctx, in, map[string]any{
		"action":  "order_fulfilled",
		"orderId": id,
	})
}

func (h *Handlers) FulfillmentsUpdate(ctx context.Context, in HandlerInput) error {
	p := in.PayloadObject
	id := pickString(p, "order_id", "orderId")
	if id == "" {
		return ErrMissingOrderID
	}

	shipment := strings.ToLower(pickString(p, "shipment_status", "status"))

	rec, err := h.existingOrder(ctx, in.Shop, id)
	if err != nil {
		return err
	}
	rec.ShipmentStatus = shipment
	switch shipment {
	case "failure", "attempted_delivery":
		rec.Flags = addFlag(rec.Flags, FlagDeliveryException)
	case "delivered":
		rec.Flags = removeFlag(rec.Flags, FlagDeliveryException)
	}
	rec.Flags = nonNilFlags(rec.Flags)
	rec.UpdatedAt = h.now()

	if err := h.Store.UpsertOrderFlag(ctx, rec); err != nil {
		return fmt.Errorf("upsert order flag: %w", err)
	}

	return h.enqueueFollowUp(ctx, in, map[string]any{
		"action":         "fulfillment_updated",
		"orderId":        id,
		"shipmentStatus": shipment,
	})
}

func (h *Handlers) ProductsUpdate(ctx context.Context, in HandlerInput) error {
	p := in.PayloadObject
	id := pickString(p, "admin_graphql_api_id", "id", "product_id")
	if id == "" {
		return ErrMissingProductID
	}

	inventory := 0
	for _, v := range pickSlice(p, "variants") {
		vm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if q, ok := pickNumber(vm, "inventory_quantity", "inventoryQuantity"); ok && q > 0 {
			inventory += int(q)
		}
	}
	if inventory == 0 {
		if q, ok := pickNumber(p, "total_inventory", "totalInventory"); ok && q > 0 {
			inventory = int(q)
		}
	}

	avg := EstimateAverageDailySales(p)
	rec := state.ProductVelocityRecord{
		ShopDomain:        in.Shop,
		ProductID:         id,
		Title:             pickString(p, "title"),
		InventoryTotal:    inventory,
		AverageDailySales: avg,
		UpdatedAt:         h.now(),
	}
	if avg > 0 {
		cover := round2(float64(inventory) / avg)
		rec.DaysOfCover = &cover
	}

	if err := h.Store.UpsertProductVelocity(ctx, rec); err != nil {
		return fmt.Errorf("upsert product velocity: %w", err)
	}

	return h.enqueueFollowUp(ctx, in, map[string]any{
		"action":            "velocity_updated",
		"productId":         id,
		"averageDailySales": avg,
		"inventoryTotal":    inventory,
	})
}

func (h *Handlers) AppUninstalled(ctx context.Context, in HandlerInput) error {
	if err := h.Store.MarkStoreUninstalled(ctx, in.Shop, h.now()); err != nil {
		return fmt.Errorf("mark store uninstalled: %w", err)
	}

	purged, err := h.Queue.Purge(ctx, in.Shop)
	if err != nil {
		h.logger().Warn("queue purge incomplete",
			zap.String("shop", in.Shop),
			zap.Int("removed", purged),
			zap.Error(err),
		)
	}

	return h.enqueueFollowUp(ctx, in, map[string]any{
		"action":     "shop_uninstalled",
		"purgedJobs": purged,
	})
}

func (h *Handlers) AppScopesUpdate(ctx context.Context, in HandlerInput) error {
	scopes := pickStrings(in.PayloadObject, "current", "scopes")
	joined := strings.Join(scopes, ",")

	if err := h.Store.UpdateStoreScopes(ctx, in.Shop, joined); err != nil {
		return fmt.Errorf("update store scopes: %w", err)
	}

	return h.enqueueFollowUp(ctx, in, map[string]any{
		"action": "scopes_updated",
		"scopes": scopes,
	})
}
