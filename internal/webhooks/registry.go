package webhooks

import (
	"fmt"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

type Registry struct {
	byKey map[domain.TopicKey]Handler
}

// NewRegistry binds every subscribed topic to its handler.
func NewRegistry(h *Handlers) (Registry, error) {
	m := make(map[domain.TopicKey]Handler, len(SubscriptionSpecs))
	for _, s := range SubscriptionSpecs {
		var fn Handler
		switch s.Key {
		case domain.TopicOrdersCreate:
			fn = h.OrdersCreate
		case domain.TopicOrdersFulfilled:
			fn = h.OrdersFulfilled
		case domain.TopicFulfillmentsUpdate:
			fn = h.FulfillmentsUpdate
		case domain.TopicProductsUpdate:
			fn = h.ProductsUpdate
		case domain.TopicAppUninstalled:
			fn = h.AppUninstalled
		case domain.TopicAppScopesUpdate:
			fn = h.AppScopesUpdate
		default:
			return Registry{}, fmt.Errorf("no handler for topic %s", s.Key)
		}
		m[s.Key] = fn
	}
	return Registry{byKey: m}, nil
}

func (r Registry) Get(key domain.TopicKey) (Handler, bool) {
	if r.byKey == nil {
		return nil, false
	}
	fn, ok := r.byKey[key]
	return fn, ok
}

// With returns a copy of r with key bound to fn.
func (r Registry) With(key domain.TopicKey, fn Handler) Registry {
	m := make(map[domain.TopicKey]Handler, len(r.byKey)+1)
	for k, v := range r.byKey {
		m[k] = v
	}
	m[key] = fn
	return Registry{byKey: m}
}
