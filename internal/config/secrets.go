package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterGetter is the slice of the SSM client used for secret resolution.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ResolveSecrets fills CronSecret from Parameter Store when only the
// parameter name is configured.
func ResolveSecrets(ctx context.Context, cfg *Config, client ParameterGetter) error {
	if cfg.CronSecret != "" || cfg.CronSecretSSMParam == "" {
		return nil
	}
	if client == nil {
		return fmt.Errorf("CRON_SECRET_SSM_PARAM set but no SSM client configured")
	}

	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(cfg.CronSecretSSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("resolve %s: %w", cfg.CronSecretSSMParam, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return fmt.Errorf("resolve %s: empty parameter", cfg.CronSecretSSMParam)
	}

	cfg.CronSecret = aws.ToString(out.Parameter.Value)
	return nil
}
