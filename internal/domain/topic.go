package domain

// TopicKey is the canonical identifier of a Shopify webhook topic.
type TopicKey string

const (
	TopicOrdersCreate       TopicKey = "ORDERS_CREATE"
	TopicOrdersFulfilled    TopicKey = "ORDERS_FULFILLED"
	TopicFulfillmentsUpdate TopicKey = "FULFILLMENTS_UPDATE"
	TopicProductsUpdate     TopicKey = "PRODUCTS_UPDATE"
	TopicAppUninstalled     TopicKey = "APP_UNINSTALLED"
	TopicAppScopesUpdate    TopicKey = "APP_SCOPES_UPDATE"
)
