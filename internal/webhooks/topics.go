package webhooks

import (
	"strings"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

type SubscriptionSpec struct {
	Key   domain.TopicKey
	Topic string
}

// SubscriptionSpecs lists every webhook topic the app subscribes to.
var SubscriptionSpecs = []SubscriptionSpec{
	{Key: domain.TopicOrdersCreate, Topic: "orders/create"},
	{Key: domain.TopicOrdersFulfilled, Topic: "orders/fulfilled"},
	{Key: domain.TopicFulfillmentsUpdate, Topic: "fulfillments/update"},
	{Key: domain.TopicProductsUpdate, Topic: "products/update"},
	{Key: domain.TopicAppUninstalled, Topic: "app/uninstalled"},
	{Key: domain.TopicAppScopesUpdate, Topic: "app/scopes_update"},
}

var topicIndex = func() map[string]domain.TopicKey {
	m := make(map[string]domain.TopicKey, len(SubscriptionSpecs))
	for _, s := range SubscriptionSpecs {
		m[normalizeTopic(s.Topic)] = s.Key
	}
	return m
}()

// normalizeTopic maps "orders.fulfilled", "ORDERS_FULFILLED" and
// "orders/fulfilled" to the same form.
func normalizeTopic(topic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	t = strings.NewReplacer(".", "/", "_", "/").Replace(t)
	return t
}

// ResolveKey maps a raw Shopify topic string to its topic key.
func ResolveKey(topic string) (domain.TopicKey, bool) {
	k, ok := topicIndex[normalizeTopic(topic)]
	return k, ok
}

// TopicFor returns the canonical Shopify topic for a key.
func TopicFor(key domain.TopicKey) (string, bool) {
	for _, s := range SubscriptionSpecs {
		if s.Key == key {
			return s.Topic, true
		}
	}
	return "", false
}
