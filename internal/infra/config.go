package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string
	StoragePath string
	GeoIPDBPath string

	PerplexityAPIKey string
	PerplexityModel  string
	PerplexityURL    string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	ReplicateAPIKey  string
	ReplicateModel   string
	ReplicateBaseURL string
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string

	SendGridAPIKey string
	SendGridURL    string
	MailFrom       string

	PaymentWebhookSecret string
	StripeSecretKey      string
	StripeCurrency       string

	ArticleCostCents int
	ImageTTL         time.Duration
	ImagePollEvery   time.Duration
	ImagePollCap     time.Duration
	StageTimeout     time.Duration
	FormatterCeiling int
	WorkerCount      int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		StoragePath: getEnv("STORAGE_PATH", "./storage"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		PerplexityAPIKey: os.Getenv("PERPLEXITY_API_KEY"),
		PerplexityModel:  getEnv("PERPLEXITY_MODEL", "sonar-pro"),
		PerplexityURL:    getEnv("PERPLEXITY_BASE_URL", "https://api.perplexity.ai"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-5-mini"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ReplicateAPIKey:  os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateModel:   getEnv("REPLICATE_MODEL", "bytedance/seedream-4"),
		ReplicateBaseURL: getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		SendGridURL:    getEnv("SENDGRID_BASE_URL", "https://api.sendgrid.com"),
		MailFrom:       getEnv("MAIL_FROM", "noreply@pressroom.local"),

		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripeCurrency:       getEnv("STRIPE_CURRENCY", "usd"),

		ArticleCostCents: getEnvInt("ARTICLE_COST_CENTS", 199),
		ImageTTL:         time.Minute * time.Duration(getEnvInt("IMAGE_TTL_MINUTES", 60)),
		ImagePollEvery:   time.Second * time.Duration(getEnvInt("IMAGE_POLL_SECONDS", 3)),
		ImagePollCap:     time.Minute * time.Duration(getEnvInt("IMAGE_POLL_CAP_MINUTES", 5)),
		StageTimeout:     time.Second * time.Duration(getEnvInt("STAGE_TIMEOUT_SECONDS", 180)),
		FormatterCeiling: getEnvInt("FORMATTER_INPUT_CEILING", 180_000),
		WorkerCount:      getEnvInt("WORKER_COUNT", 4),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
