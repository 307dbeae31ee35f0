package state

import (
	"context"
	"time"

	"github.com/ETAnderson/merchantdesk/internal/domain"
)

type StoreRecord struct {
	ID              string     `json:"id"`
	Domain          string     `json:"domain"`
	MyShopifyDomain string     `json:"myShopifyDomain"`
	Scopes          string     `json:"scopes,omitempty"`
	InstalledAt     time.Time  `json:"installedAt"`
	UninstalledAt   *time.Time `json:"uninstalledAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type WebhookEventRecord struct {
	ID         string               `json:"id"`
	WebhookID  string               `json:"webhookId"`
	ShopDomain string               `json:"shopDomain"`
	Topic      string               `json:"topic"`
	TopicKey   domain.TopicKey      `json:"topicKey"`
	APIVersion string               `json:"apiVersion,omitempty"`
	Status     domain.WebhookStatus `json:"status"`
	Error      string               `json:"error,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// WebhookRegistrationRecord tracks the last delivery seen per shop and topic.
type WebhookRegistrationRecord struct {
	ShopDomain     string          `json:"shopDomain"`
	TopicKey       domain.TopicKey `json:"topicKey"`
	Topic          string          `json:"topic"`
	LastWebhookID  string          `json:"lastWebhookId"`
	LastReceivedAt time.Time       `json:"lastReceivedAt"`
	DeliveryCount  int             `json:"deliveryCount"`
}

type OrderFlagRecord struct {
	ShopDomain        string    `json:"shopDomain"`
	OrderID           string    `json:"orderId"`
	OrderName         string    `json:"orderName,omitempty"`
	FinancialStatus   string    `json:"financialStatus,omitempty"`
	FulfillmentStatus string    `json:"fulfillmentStatus,omitempty"`
	ShipmentStatus    string    `json:"shipmentStatus,omitempty"`
	TotalAmount       float64   `json:"totalAmount"`
	Currency          string    `json:"currency,omitempty"`
	Flags             []string  `json:"flags"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type ProductVelocityRecord struct {
	ShopDomain        string    `json:"shopDomain"`
	ProductID         string    `json:"productId"`
	Title             string    `json:"title,omitempty"`
	InventoryTotal    int       `json:"inventoryTotal"`
	AverageDailySales float64   `json:"averageDailySales"`
	DaysOfCover       *float64  `json:"daysOfCover,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type ConnectionEventRecord struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"storeId"`
	Integration string    `json:"integration"`
	Kind        string    `json:"kind,omitempty"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type StoreSecretRecord struct {
	ID                 string     `json:"id"`
	StoreID            string     `json:"storeId"`
	Provider           string     `json:"provider"`
	Label              string     `json:"label,omitempty"`
	RotationReminderAt *time.Time `json:"rotationReminderAt,omitempty"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// CacheRowKey is the composite identity of a cached analytics dataset.
type CacheRowKey struct {
	StoreID    string
	MetricKey  string
	RangeStart time.Time
	RangeEnd   time.Time
}

type CacheRow struct {
	ID string
	CacheRowKey
	Payload     []byte
	RefreshedAt time.Time
	ExpiresAt   *time.Time
}

type IdempotencyRecord struct {
	StatusCode int
	BodyJSON   []byte
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

type Store interface {
	// Shops
	UpsertStore(ctx context.Context, rec StoreRecord) (StoreRecord, error)
	FindStoreByDomain(ctx context.Context, shopDomain string) (StoreRecord, bool, error)
	MarkStoreUninstalled(ctx context.Context, shopDomain string, at time.Time) error
	UpdateStoreScopes(ctx context.Context, shopDomain string, scopes string) error

	// Webhook dedupe + event tracking
	ClaimWebhook(ctx context.Context, webhookID, shopDomain, topic string, at time.Time) (claimed bool, err error)
	ReleaseWebhook(ctx context.Context, webhookID string) error
	CreateWebhookEvent(ctx context.Context, rec WebhookEventRecord) (WebhookEventRecord, error)
	MarkWebhookEvent(ctx context.Context, id string, status domain.WebhookStatus, message string) error
	GetWebhookEvent(ctx context.Context, id string) (WebhookEventRecord, bool, error)
	UpsertWebhookRegistration(ctx context.Context, rec WebhookRegistrationRecord) error
	ListWebhookRegistrations(ctx context.Context, limit int) ([]WebhookRegistrationRecord, error)

	// Webhook-derived business state
	UpsertOrderFlag(ctx context.Context, rec OrderFlagRecord) error
	GetOrderFlag(ctx context.Context, shopDomain, orderID string) (OrderFlagRecord, bool, error)
	ListOrderFlags(ctx context.Context, limit int) ([]OrderFlagRecord, error)
	UpsertProductVelocity(ctx context.Context, rec ProductVelocityRecord) error
	ListProductVelocity(ctx context.Context, limit int) ([]ProductVelocityRecord, error)

	// KPI / analytics cache
	GetCacheRow(ctx context.Context, key CacheRowKey) (CacheRow, bool, error)
	UpsertCacheRow(ctx context.Context, row CacheRow) error
	ListExpiredCacheRows(ctx context.Context, now time.Time) ([]CacheRow, error)
	ListFallbackStaleCacheRows(ctx context.Context, refreshedBefore time.Time) ([]CacheRow, error)
	DeleteCacheRows(ctx context.Context, ids []string) (int, error)

	// Connection events
	InsertConnectionEvent(ctx context.Context, rec ConnectionEventRecord) (ConnectionEventRecord, error)
	ListConnectionEventsBefore(ctx context.Context, cutoff time.Time) ([]ConnectionEventRecord, error)
	LatestConnectionEvent(ctx context.Context, storeID, integration string) (ConnectionEventRecord, bool, error)
	DeleteConnectionEvents(ctx context.Context, ids []string) (int, error)

	// Store secrets
	UpsertStoreSecret(ctx context.Context, rec StoreSecretRecord) (StoreSecretRecord, error)
	ListSecretsDueBefore(ctx context.Context, t time.Time) ([]StoreSecretRecord, error)

	// Idempotency cache
	GetIdempotency(ctx context.Context, shopDomain string, endpoint string, idemKeyHash string) (IdempotencyRecord, bool, error)
	PutIdempotency(ctx context.Context, shopDomain string, endpoint string, idemKeyHash string, rec IdempotencyRecord) error
}
