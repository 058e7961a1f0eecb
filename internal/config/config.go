package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server             ServerConfig             `mapstructure:"server"`
	Auth               AuthConfig               `mapstructure:"auth"`
	CORS               CORSConfig               `mapstructure:"cors"`
	RateLimit          RateLimitConfig          `mapstructure:"rate_limit"`
	Redis              RedisConfig              `mapstructure:"redis"`
	Queue              QueueConfig              `mapstructure:"queue"`
	RecipientRateLimit RecipientRateLimitConfig `mapstructure:"recipient_rate_limit"`
	Storage            StorageConfig            `mapstructure:"storage"`
	Supabase           SupabaseConfig           `mapstructure:"supabase"`
	Email              EmailConfig              `mapstructure:"email"`
	Telegram           TelegramConfig           `mapstructure:"telegram"`
	Alimtalk           AlimtalkConfig           `mapstructure:"alimtalk"`
	Provider           ProviderConfig           `mapstructure:"provider"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds per-client API rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RedisConfig holds Redis connection settings. The queue and the
// recipient rate limiter share this instance.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig holds async queue settings.
type QueueConfig struct {
	Concurrency   int `mapstructure:"concurrency"`
	MaxRetry      int `mapstructure:"max_retry"`
	RetryDelaySec int `mapstructure:"retry_delay_sec"`
}

// RecipientRateLimitConfig holds per-recipient throttling settings.
type RecipientRateLimitConfig struct {
	MaxPerHour int `mapstructure:"max_per_hour"`
}

// StorageConfig holds the S3-compatible template blob storage settings.
type StorageConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// Configured reports whether the storage credentials are complete.
func (c StorageConfig) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// SupabaseConfig holds the delivery log database settings.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// EmailConfig holds email provider settings.
type EmailConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// TelegramConfig holds Telegram Bot API settings.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// AlimtalkConfig holds NHN Cloud alimtalk settings.
type AlimtalkConfig struct {
	Domain     string `mapstructure:"domain"`
	APIVersion string `mapstructure:"api_version"`
	AppKey     string `mapstructure:"app_key"`
	SecretKey  string `mapstructure:"secret_key"`
	SenderKey  string `mapstructure:"sender_key"`
}

// ProviderConfig holds settings shared by every provider client.
type ProviderConfig struct {
	TimeoutSec      int `mapstructure:"timeout_sec"`
	RetryAttempts   int `mapstructure:"retry_attempts"`
	SendConcurrency int `mapstructure:"send_concurrency"`
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the NOTICO_ prefix and underscore separators.
// Example: NOTICO_SERVER_PORT overrides server.port in config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Load .env file if it exists
	_ = godotenv.Load()

	v.SetEnvPrefix("NOTICO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8081)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.max_retry", 5)
	v.SetDefault("queue.retry_delay_sec", 30)
	v.SetDefault("recipient_rate_limit.max_per_hour", 3)
	v.SetDefault("storage.region", "ap-northeast-2")
	v.SetDefault("alimtalk.domain", "https://api-alimtalk.cloud.toast.com")
	v.SetDefault("alimtalk.api_version", "v2.3")
	v.SetDefault("provider.timeout_sec", 10)
	v.SetDefault("provider.retry_attempts", 3)
	v.SetDefault("provider.send_concurrency", 5)

	// Config file is optional; env vars can provide everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Handle comma-separated API keys from env var
	if apiKeysStr := v.GetString("auth.api_keys"); apiKeysStr != "" && len(cfg.Auth.APIKeys) == 0 {
		keys := strings.Split(apiKeysStr, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.Auth.APIKeys = keys
	}

	return &cfg, nil
}
