package queue

import (
	"strconv"
	"strings"
)

type FactoryConfig struct {
	Driver    string // WEBHOOK_QUEUE_DRIVER
	UseBullMQ string // WEBHOOK_QUEUE_USE_BULLMQ
	RedisURL  string
	QueueName string
}

// UseRedis reports whether the Redis driver is requested and a Redis URL is
// configured.
func (c FactoryConfig) UseRedis() bool {
	return c.redisRequested() && strings.TrimSpace(c.RedisURL) != ""
}

func (c FactoryConfig) redisRequested() bool {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "bullmq", "bull", "redis", "asynq":
		return true
	}
	return parseBool(c.UseBullMQ)
}

// NewDriver builds the configured driver. An explicit Redis driver flag with
// no Redis URL is an error rather than a silent memory fallback.
func NewDriver(cfg FactoryConfig) (Driver, error) {
	if cfg.UseRedis() {
		return NewRedisDriver(RedisConfig{URL: cfg.RedisURL, QueueName: cfg.QueueName})
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "bullmq", "bull", "redis", "asynq":
		return nil, ErrRedisURLRequired
	}
	return NewMemoryDriver(), nil
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	switch s {
	case "yes", "y", "on":
		return true
	case "no", "n", "off", "":
		return false
	}
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
