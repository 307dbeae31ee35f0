package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "webhooks", cfg.QueueName)
	assert.Equal(t, 360, cfg.AnalyticsCacheTTLMinutes)
	assert.Equal(t, 24*time.Hour, cfg.RetentionInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STATE_BACKEND", "mysql")
	t.Setenv("DB_DSN", "user:pw@tcp(localhost:3306)/md?parseTime=true")
	t.Setenv("ANALYTICS_CACHE_TTL_MINUTES", "15")
	t.Setenv("RETENTION_INTERVAL", "1h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.StateBackend)
	assert.Equal(t, 15, cfg.AnalyticsCacheTTLMinutes)
	assert.Equal(t, time.Hour, cfg.RetentionInterval)
}

func TestRedisURL_PrefersQueueURL(t *testing.T) {
	cfg := Config{QueueRedisURL: "redis://queue:6379", UpstashRedisURL: "rediss://upstash:6379"}
	assert.Equal(t, "redis://queue:6379", cfg.RedisURL())

	cfg.QueueRedisURL = "  "
	assert.Equal(t, "rediss://upstash:6379", cfg.RedisURL())
}

type fakeSSM struct {
	value string
	err   error
	name  string
}

func (f *fakeSSM) GetParameter(ctx context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.name = aws.ToString(in.Name)
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(f.value)}}, nil
}

func TestResolveSecrets(t *testing.T) {
	cfg := Config{CronSecretSSMParam: "/merchantdesk/cron"}
	client := &fakeSSM{value: "s3cret"}

	require.NoError(t, ResolveSecrets(context.Background(), &cfg, client))
	assert.Equal(t, "s3cret", cfg.CronSecret)
	assert.Equal(t, "/merchantdesk/cron", client.name)
}

func TestResolveSecrets_ExplicitSecretWins(t *testing.T) {
	cfg := Config{CronSecret: "env", CronSecretSSMParam: "/merchantdesk/cron"}
	client := &fakeSSM{err: errors.New("should not be called")}

	require.NoError(t, ResolveSecrets(context.Background(), &cfg, client))
	assert.Equal(t, "env", cfg.CronSecret)
}

func TestResolveSecrets_PropagatesError(t *testing.T) {
	cfg := Config{CronSecretSSMParam: "/merchantdesk/cron"}
	err := ResolveSecrets(context.Background(), &cfg, &fakeSSM{err: errors.New("denied")})
	assert.Error(t, err)
}
