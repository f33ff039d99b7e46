package service

import (
	"context"
	"fmt"
	"strings"

	"streampass/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

type SecretManagerService interface {
	AccessSecret(ctx context.Context, name string) (string, error)
	Close() error
}

type secretManagerService struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerService(ctx context.Context, cfg *config.Config) (SecretManagerService, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID is not set")
	}

	var opts []option.ClientOption
	if cfg.SecretManagerEndpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.SecretManagerEndpoint))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:    client,
		projectID: cfg.GCPProjectID,
	}, nil
}

// secretVersionName accepts a bare secret id, a secret path or a full version path.
func secretVersionName(projectID, name string) string {
	switch {
	case strings.Contains(name, "/versions/"):
		return name
	case strings.HasPrefix(name, "projects/"):
		return name + "/versions/latest"
	default:
		return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, name)
	}
}

func (s *secretManagerService) AccessSecret(ctx context.Context, name string) (string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretVersionName(s.projectID, name),
	}
	result, err := s.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}
	return strings.TrimSpace(string(result.Payload.Data)), nil
}

func (s *secretManagerService) Close() error {
	return s.client.Close()
}

// ResolveStripeSecrets fills the Stripe keys from Secret Manager for every
// *_SECRET setting that names a secret.
func ResolveStripeSecrets(ctx context.Context, cfg *config.Config, sm SecretManagerService, logger zerolog.Logger) error {
	targets := []struct {
		secret string
		dst    *string
	}{
		{cfg.StripeSecretKeySecret, &cfg.StripeSecretKey},
		{cfg.StripeWebhookSecretSecret, &cfg.StripeWebhookSecret},
	}
	for _, t := range targets {
		if t.secret == "" {
			continue
		}
		value, err := sm.AccessSecret(ctx, t.secret)
		if err != nil {
			return fmt.Errorf("resolve secret %s: %w", t.secret, err)
		}
		*t.dst = value
		logger.Info().Str("secret", t.secret).Msg("Resolved secret from Secret Manager")
	}
	return nil
}
