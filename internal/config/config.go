package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"dev"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:""`

	StateBackend string `env:"STATE_BACKEND" envDefault:"memory"` // memory | mysql
	MySQLDSN     string `env:"DB_DSN"`                            // required when STATE_BACKEND=mysql

	// Optional: run migrations at startup (dev convenience)
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"false"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	// Webhook job queue
	QueueName         string `env:"WEBHOOK_QUEUE_NAME" envDefault:"webhooks"`
	QueueRedisURL     string `env:"WEBHOOK_QUEUE_REDIS_URL"`
	UpstashRedisURL   string `env:"UPSTASH_REDIS_URL"`
	QueueDriver       string `env:"WEBHOOK_QUEUE_DRIVER"`
	QueueUseBullMQ    string `env:"WEBHOOK_QUEUE_USE_BULLMQ"`
	QueueInlineWorker bool   `env:"WEBHOOK_QUEUE_INLINE_WORKER" envDefault:"false"`

	// Empty table name keeps webhook dedupe in the state store.
	WebhookDedupeTable string `env:"SHOPIFY_WEBHOOK_DEDUPE_TABLE"`

	CronSecret         string `env:"CRON_SECRET"`
	CronSecretSSMParam string `env:"CRON_SECRET_SSM_PARAM"`

	AnalyticsServiceURL      string `env:"ANALYTICS_SERVICE_URL"`
	SyncServiceURL           string `env:"SYNC_SERVICE_URL"`
	AssistantsServiceURL     string `env:"ASSISTANTS_SERVICE_URL"`
	UseMockData              bool   `env:"USE_MOCK_DATA" envDefault:"false"`
	AnalyticsCacheTTLMinutes int    `env:"ANALYTICS_CACHE_TTL_MINUTES" envDefault:"360"`

	RotationAlertsTopicARN string `env:"ROTATION_ALERTS_TOPIC_ARN"`
	ExportBucket           string `env:"EXPORT_BUCKET"`

	ShopifyAPISecret string `env:"SHOPIFY_API_SECRET"`

	OTelStdout        bool          `env:"OTEL_STDOUT" envDefault:"false"`
	RetentionInterval time.Duration `env:"RETENTION_INTERVAL" envDefault:"24h"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RedisURL is the queue connection string, preferring the dedicated queue URL.
func (c Config) RedisURL() string {
	if v := strings.TrimSpace(c.QueueRedisURL); v != "" {
		return v
	}
	return strings.TrimSpace(c.UpstashRedisURL)
}

func (c Config) IsDev() bool {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "", "dev", "development", "local", "test":
		return true
	}
	return false
}

func (c Config) NeedsAWS() bool {
	return c.WebhookDedupeTable != "" ||
		c.RotationAlertsTopicARN != "" ||
		c.ExportBucket != "" ||
		(c.CronSecret == "" && c.CronSecretSSMParam != "")
}
