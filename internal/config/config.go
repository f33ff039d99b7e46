package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBHost        string `envconfig:"DB_HOST" required:"true"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" required:"true"`
	DBPassword    string `envconfig:"DB_PASSWORD" required:"true"`
	DBName        string `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	DBAutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`

	JWTSecret    string        `envconfig:"JWT_SECRET" required:"true"`
	JWTExpiresIn time.Duration `envconfig:"JWT_EXPIRES_IN" default:"2h"`

	// Public base URL of this API, used to build checkout redirect URLs.
	HostAPI string `envconfig:"HOST_API" default:"http://localhost:8080"`

	// Stripe settings. The *Secret fields name Secret Manager secrets and take
	// precedence over the plain values when GCPProjectID is set.
	StripeSecretKey           string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret       string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeSecretKeySecret     string `envconfig:"STRIPE_SECRET_KEY_SECRET"`
	StripeWebhookSecretSecret string `envconfig:"STRIPE_WEBHOOK_SECRET_SECRET"`
	StripePortalReturnURL     string `envconfig:"STRIPE_PORTAL_RETURN_URL"`

	// Redis backs the webhook event lock; an in-memory lock is used when empty.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Google Cloud settings
	GCPProjectID            string `envconfig:"GCP_PROJECT_ID"`
	PubSubSubscriptionTopic string `envconfig:"PUBSUB_SUBSCRIPTION_TOPIC" default:"subscription-events"`
	SecretManagerEndpoint   string `envconfig:"SECRET_MANAGER_ENDPOINT"`

	// Video files
	VideosDir      string `envconfig:"VIDEOS_DIR" default:"videos"`
	VideosS3Bucket string `envconfig:"VIDEOS_S3_BUCKET"`
	S3URL          string `envconfig:"S3_URL"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.HostAPI = strings.TrimRight(cfg.HostAPI, "/")
	if cfg.StripePortalReturnURL == "" {
		cfg.StripePortalReturnURL = cfg.HostAPI + "/stripe/success"
	}
	return &cfg, nil
}

// Validate checks settings that may only be known after secrets are resolved.
func (c *Config) Validate() error {
	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is not set")
	}
	if c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is not set")
	}
	return nil
}

// DatabaseURL builds a postgres:// connection URL from the DB_* settings.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + strconv.Itoa(c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
