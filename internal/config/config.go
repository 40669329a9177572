// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Translator provider identifiers.
const (
	ProviderDeepL  = "deepl"
	ProviderOpenAI = "openai"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"OSYNC_DB_PATH" envDefault:"./data/osync.db"`
	ServerHost string `env:"OSYNC_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"OSYNC_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"OSYNC_ENV" envDefault:"development"`
	LogLevel   string `env:"OSYNC_LOG_LEVEL" envDefault:"info"`

	// Content store configuration
	ContentAPIBaseURL string `env:"OSYNC_CONTENT_API_URL"` // Optional override, derived from project ID when empty
	ContentProjectID  string `env:"OSYNC_CONTENT_PROJECT_ID,required"`
	ContentDataset    string `env:"OSYNC_CONTENT_DATASET" envDefault:"production"`
	ContentAPIVersion string `env:"OSYNC_CONTENT_API_VERSION" envDefault:"2025-01-16"`
	ContentWriteToken string `env:"OSYNC_CONTENT_WRITE_TOKEN,required"`

	// Inbound webhook verification. When set, the sanity-webhook-signature
	// header must carry sha256=<hex HMAC of body> or the literal secret.
	WebhookSecret string `env:"OSYNC_WEBHOOK_SECRET"`

	// Translation provider configuration
	TranslatorProvider string  `env:"OSYNC_TRANSLATOR" envDefault:"deepl"`
	DeepLAPIKey        string  `env:"OSYNC_DEEPL_API_KEY"`
	DeepLBaseURL       string  `env:"OSYNC_DEEPL_API_URL"` // Optional override, chosen by key tier when empty
	OpenAIAPIKey       string  `env:"OSYNC_OPENAI_API_KEY"`
	OpenAIModel        string  `env:"OSYNC_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	TranslateRPS       float64 `env:"OSYNC_TRANSLATE_RPS" envDefault:"10"`
	TranslateBurst     int     `env:"OSYNC_TRANSLATE_BURST" envDefault:"20"`

	// Target languages override (comma-separated two-letter codes).
	// Empty means the built-in six-language set.
	TargetLanguages []string `env:"OSYNC_TARGET_LANGUAGES" envSeparator:","`

	// Cache configuration
	RedisURL    string `env:"OSYNC_REDIS_URL"`                        // Optional Redis URL for the shared segment cache
	CachePrefix string `env:"OSYNC_CACHE_PREFIX" envDefault:"osync:"` // Redis key prefix
	CacheTTL    int    `env:"OSYNC_CACHE_TTL" envDefault:"86400"`     // Segment cache TTL in seconds

	// Outbound delivery retry worker
	RetryEnabled bool `env:"OSYNC_RETRY_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// ContentBaseURL returns the content API base URL, derived from the project
// ID when no explicit override is set.
func (c Config) ContentBaseURL() string {
	if c.ContentAPIBaseURL != "" {
		return strings.TrimSuffix(c.ContentAPIBaseURL, "/")
	}
	return fmt.Sprintf("https://%s.api.sanity.io", c.ContentProjectID)
}

// DeepLURL returns the DeepL API base URL. Keys issued for the free tier
// carry an ":fx" suffix and must use the free endpoint.
func (c Config) DeepLURL() string {
	if c.DeepLBaseURL != "" {
		return strings.TrimSuffix(c.DeepLBaseURL, "/")
	}
	if strings.HasSuffix(c.DeepLAPIKey, ":fx") {
		return "https://api-free.deepl.com"
	}
	return "https://api.deepl.com"
}

// Load parses environment variables and returns a Config struct.
// Validation is eager: a missing translator credential is a startup error,
// not a per-request nil check.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	switch cfg.TranslatorProvider {
	case ProviderDeepL:
		if cfg.DeepLAPIKey == "" {
			return nil, fmt.Errorf("OSYNC_DEEPL_API_KEY is required when OSYNC_TRANSLATOR=deepl")
		}
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OSYNC_OPENAI_API_KEY is required when OSYNC_TRANSLATOR=openai")
		}
	default:
		return nil, fmt.Errorf("unknown translator provider %q (expected deepl or openai)", cfg.TranslatorProvider)
	}

	if cfg.TranslateRPS <= 0 {
		return nil, fmt.Errorf("OSYNC_TRANSLATE_RPS must be positive, got %v", cfg.TranslateRPS)
	}

	for _, code := range cfg.TargetLanguages {
		if len(strings.TrimSpace(code)) != 2 {
			return nil, fmt.Errorf("invalid target language code %q in OSYNC_TARGET_LANGUAGES", code)
		}
	}

	return cfg, nil
}
