package config

import (
	"fmt"
	"strings"

	envparse "github.com/caarlos0/env/v11"
)

type Config struct {
	Env      string `json:"env" env:"STOREFRONT_ENV"`
	Port     int    `json:"port" env:"STOREFRONT_PORT"`
	LogJSON  bool   `json:"logJson" env:"STOREFRONT_LOG_JSON"`
	LogLevel string `json:"logLevel" env:"STOREFRONT_LOG_LEVEL"`

	DatabaseURL string `json:"-" env:"DATABASE_URL"`

	// JWTSecret verifies bearer tokens issued by the identity provider.
	JWTSecret string `json:"-" env:"SUPABASE_JWT_SECRET"`

	StripeSecretKey     string `json:"-" env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `json:"-" env:"STRIPE_WEBHOOK_SECRET"`
	RewardCouponID      string `json:"rewardCouponId" env:"REWARD_COUPON_ID"`

	SMTPHost     string `json:"smtpHost" env:"SMTP_HOST"`
	SMTPPort     string `json:"smtpPort" env:"SMTP_PORT"`
	SMTPUser     string `json:"-" env:"SMTP_USER"`
	SMTPPassword string `json:"-" env:"SMTP_PASSWORD"`
	MailFrom     string `json:"mailFrom" env:"MAIL_FROM"`

	ReconcileQueueURL string `json:"reconcileQueueUrl" env:"RECONCILE_QUEUE_URL"`
	AWSRegion         string `json:"awsRegion" env:"AWS_REGION"`
}

func Default() Config {
	return Config{
		Env:       "dev",
		Port:      5000,
		LogJSON:   true,
		LogLevel:  "info",
		SMTPPort:  "587",
		AWSRegion: "us-east-1",
	}
}

// EnvDefaults overlays the environment on Default. A malformed variable is
// returned as an error rather than falling back to defaults.
func EnvDefaults() (Config, error) {
	return fromEnv(Default())
}

// fromEnv overlays variables that are set in the environment; unset ones keep
// the value already in c.
func fromEnv(c Config) (Config, error) {
	if err := envparse.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

func (c Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPPort != "" && c.MailFrom != ""
}

func (c Config) Validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "SUPABASE_JWT_SECRET")
	}
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
