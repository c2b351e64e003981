// Package config loads service configuration from YAML with environment
// overrides for deployment-specific values and secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// AppOrigin is the browser origin of the frontend.
	AppOrigin string `yaml:"appOrigin"`

	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	SessionSecret string `yaml:"sessionSecret"`
	SessionTTL    string `yaml:"sessionTTL"`

	GmailClientID     string `yaml:"gmailClientID"`
	GmailClientSecret string `yaml:"gmailClientSecret"`
	OAuthRedirectURL  string `yaml:"oauthRedirectURL"`
	AuthStateTTL      string `yaml:"authStateTTL"`

	ModelProvider string `yaml:"modelProvider"` // openai | ollama
	ModelBaseURL  string `yaml:"modelBaseURL"`
	ModelAPIKey   string `yaml:"modelAPIKey"`
	ModelName     string `yaml:"modelName"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	MaxUploadBytes        int64 `yaml:"maxUploadBytes"`
	ModelRateLimitPerMin  int   `yaml:"modelRateLimitPerMinute"`
	AuthRateLimitPerMin   int   `yaml:"authRateLimitPerMinute"`
	DisableObjectStorage  bool  `yaml:"disableObjectStorage"`
	DisableModelRateLimit bool  `yaml:"disableModelRateLimit"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("TAXFOLIO_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("TAXFOLIO_APP_ORIGIN"); v != "" {
		cfg.AppOrigin = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("GMAIL_CLIENT_ID"); v != "" {
		cfg.GmailClientID = v
	}
	if v := os.Getenv("GMAIL_CLIENT_SECRET"); v != "" {
		cfg.GmailClientSecret = v
	}
	if v := os.Getenv("TAXFOLIO_OAUTH_REDIRECT_URL"); v != "" {
		cfg.OAuthRedirectURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("MODEL_BASE_URL"); v != "" {
		cfg.ModelBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("MODEL_API_KEY"); v != "" {
		cfg.ModelAPIKey = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		cfg.ModelName = strings.TrimSpace(v)
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("TAXFOLIO_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("TAXFOLIO_MODEL_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ModelRateLimitPerMin = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or TAXFOLIO_PORT)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for auth states, sessions, and rate limiting")
	}
	if strings.TrimSpace(cfg.SessionSecret) == "" {
		return errors.New("config: sessionSecret is required (set in config.yaml or SESSION_SECRET)")
	}
	if strings.TrimSpace(cfg.AppOrigin) == "" {
		return errors.New("config: appOrigin is required for CORS and the OAuth popup")
	}
	if cfg.ModelRateLimitPerMin < 0 || cfg.AuthRateLimitPerMin < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	switch cfg.ModelProvider {
	case "", "openai", "ollama":
	default:
		return fmt.Errorf("config: unknown modelProvider %q", cfg.ModelProvider)
	}
	return nil
}

// ParseTTL parses an optional duration string, falling back to def when the
// value is empty.
func ParseTTL(value string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", value)
	}
	return dur, nil
}
