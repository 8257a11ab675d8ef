package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`

	LineAPIURL           string `mapstructure:"LINE_API_URL"`
	LineAccessToken      string `mapstructure:"LINE_CHANNEL_ACCESS_TOKEN"`
	LineAdminRecipientID string `mapstructure:"LINE_ADMIN_RECIPIENT_ID"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	GatewayTimeoutSeconds int `mapstructure:"GATEWAY_TIMEOUT_SECONDS"`

	AlertEventSink   string `mapstructure:"ALERT_EVENT_SINK"`
	KafkaBrokers     string `mapstructure:"KAFKA_BROKERS"`
	KafkaAlertTopic  string `mapstructure:"KAFKA_ALERT_TOPIC"`
	SQSAlertQueueURL string `mapstructure:"SQS_ALERT_QUEUE_URL"`

	ExportS3Bucket string `mapstructure:"EXPORT_S3_BUCKET"`
	ExportS3Prefix string `mapstructure:"EXPORT_S3_PREFIX"`

	Timezone       string `mapstructure:"TIMEZONE"`
	AlertQueueSize int    `mapstructure:"ALERT_QUEUE_SIZE"`
	AlertWorkers   int    `mapstructure:"ALERT_WORKERS"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DEFAULT_TENANT",
	"CORS_ORIGINS", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "PUBLIC_BASE_URL",
	"LINE_API_URL", "LINE_CHANNEL_ACCESS_TOKEN", "LINE_ADMIN_RECIPIENT_ID",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
	"GATEWAY_TIMEOUT_SECONDS", "ALERT_EVENT_SINK", "KAFKA_BROKERS", "KAFKA_ALERT_TOPIC",
	"SQS_ALERT_QUEUE_URL", "EXPORT_S3_BUCKET", "EXPORT_S3_PREFIX",
	"TIMEZONE", "ALERT_QUEUE_SIZE", "ALERT_WORKERS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8000")
	v.SetDefault("LINE_API_URL", "https://api.line.me/v2/bot/message/push")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("GATEWAY_TIMEOUT_SECONDS", 5)
	v.SetDefault("ALERT_EVENT_SINK", "none")
	v.SetDefault("KAFKA_ALERT_TOPIC", "survey-alerts")
	v.SetDefault("EXPORT_S3_PREFIX", "exports/")
	v.SetDefault("TIMEZONE", "Asia/Bangkok")
	v.SetDefault("ALERT_QUEUE_SIZE", 256)
	v.SetDefault("ALERT_WORKERS", 2)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, unauthenticated requests act as admin.")
		log.Println("WARNING: Set ENV=production and configure AUTH_SIGNING_KEY for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// GatewayTimeout is the per-call deadline for the push and email gateways.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSeconds) * time.Second
}

// Location is the zone calendar days (dashboard, export ranges) are counted in.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

// KafkaBrokerList splits KAFKA_BROKERS on commas, dropping blanks.
func (c *Config) KafkaBrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Validate checks that the configuration is safe to run. Outside development a
// token verification source is mandatory, and the alert event sink must name
// its transport endpoint.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY or AUTH_ISSUER must be set when ENV=%q", c.Env)
	}
	if c.GatewayTimeoutSeconds <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT_SECONDS must be positive, got %d", c.GatewayTimeoutSeconds)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.AlertEventSink {
	case "", "none":
	case "kafka":
		if len(c.KafkaBrokerList()) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when ALERT_EVENT_SINK is \"kafka\"")
		}
	case "sqs":
		if c.SQSAlertQueueURL == "" {
			return fmt.Errorf("SQS_ALERT_QUEUE_URL is required when ALERT_EVENT_SINK is \"sqs\"")
		}
	default:
		return fmt.Errorf("ALERT_EVENT_SINK must be \"none\", \"kafka\", or \"sqs\", got %q", c.AlertEventSink)
	}

	return nil
}
