package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Config struct {
	Addr string

	PostgresDSN string
	Redis       RedisConfig
	Kafka       KafkaConfig

	JWTSigningKey string

	// WebhookMasterSecret seeds per-provider webhook signing secrets
	// (see pkg/platform/secrets.DeriveWebhookSecret).
	WebhookMasterSecret string

	Providers ProviderConfig
	RateLimit RateLimitConfig

	// SessionTTL bounds how long a provider-side verification session stays
	// actionable before it is treated as expired.
	SessionTTL time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds broker addresses and topic names for outbound events.
type KafkaConfig struct {
	Brokers           []string
	AuditTopic        string
	NotificationTopic string
}

// ProviderConfig holds upstream verification provider credentials.
type ProviderConfig struct {
	HyperVergeBaseURL string
	HyperVergeAppID   string
	HyperVergeAppKey  string
	IDfyBaseURL       string
	IDfyAccountID     string
	IDfyAPIKey        string
	Timeout           time.Duration
}

// RateLimitConfig holds verification attempt caps. Zero values fall back to
// the defaults below at service construction.
type RateLimitConfig struct {
	HourlyCap int
	DailyCap  int
}

const (
	DefaultHourlyCap  = 5
	DefaultDailyCap   = 10
	DefaultSessionTTL = 30 * time.Minute
)

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:        envOr("KYCGATE_ADDR", ":8080"),
		PostgresDSN: os.Getenv("KYCGATE_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("KYCGATE_REDIS_URL"),
			PoolSize:     envIntOr("KYCGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("KYCGATE_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:           splitNonEmpty(os.Getenv("KYCGATE_KAFKA_BROKERS")),
			AuditTopic:        envOr("KYCGATE_KAFKA_AUDIT_TOPIC", "kyc.audit.compliance"),
			NotificationTopic: envOr("KYCGATE_KAFKA_NOTIFICATION_TOPIC", "kyc.notifications"),
		},
		JWTSigningKey:       envOr("KYCGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		WebhookMasterSecret: os.Getenv("KYCGATE_WEBHOOK_MASTER_SECRET"),
		Providers: ProviderConfig{
			HyperVergeBaseURL: envOr("HYPERVERGE_BASE_URL", "https://ind.hyperverge.co/v1"),
			HyperVergeAppID:   os.Getenv("HYPERVERGE_APP_ID"),
			HyperVergeAppKey:  os.Getenv("HYPERVERGE_APP_KEY"),
			IDfyBaseURL:       envOr("IDFY_BASE_URL", "https://eve.idfy.com/v3"),
			IDfyAccountID:     os.Getenv("IDFY_ACCOUNT_ID"),
			IDfyAPIKey:        os.Getenv("IDFY_API_KEY"),
			Timeout:           10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			HourlyCap: envIntOr("KYCGATE_RATE_LIMIT_HOURLY", DefaultHourlyCap),
			DailyCap:  envIntOr("KYCGATE_RATE_LIMIT_DAILY", DefaultDailyCap),
		},
		SessionTTL: DefaultSessionTTL,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
