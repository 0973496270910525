package lambda

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/dwsmith1983/clearmail/pkg/types"
)

// SecretsAPI is the subset of the Secrets Manager client used for key lookup.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ResolveAPIKey returns the LLM API key. The secret named by
// cfg.APIKeySecret takes precedence over the cfg.APIKeyEnv variable. An empty
// key with no error means none is configured.
func ResolveAPIKey(ctx context.Context, sm SecretsAPI, cfg *types.LLMConfig) (string, error) {
	if cfg.APIKeySecret != "" {
		if sm == nil {
			return "", fmt.Errorf("secret %s configured but no secrets client available", cfg.APIKeySecret)
		}
		out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(cfg.APIKeySecret),
		})
		if err != nil {
			return "", fmt.Errorf("reading secret %s: %w", cfg.APIKeySecret, err)
		}
		if out.SecretString == nil || strings.TrimSpace(*out.SecretString) == "" {
			return "", fmt.Errorf("secret %s has no string value", cfg.APIKeySecret)
		}
		return strings.TrimSpace(*out.SecretString), nil
	}
	if cfg.APIKeyEnv == "" {
		return "", nil
	}
	return strings.TrimSpace(os.Getenv(cfg.APIKeyEnv)), nil
}
