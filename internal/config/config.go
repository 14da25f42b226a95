package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Cache     CacheConfig     `json:"cache"`
	LLM       LLMConfig       `json:"llm"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Tracing   TracingConfig   `json:"tracing"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string `json:"port"`
	Host string `json:"host"`
	// Max request body size in bytes (default: 1MB)
	MaxRequestBodySize int64 `json:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// AuthConfig holds bearer-token authentication configuration.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// RateLimitConfig holds HTTP rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled"`
	Rate    int  `json:"rate"`
	Window  int  `json:"window"` // in seconds
}

// CacheConfig holds response cache configuration.
type CacheConfig struct {
	Backend           string `json:"backend"` // memory|redis
	MaxSize           int    `json:"max_size"`
	DefaultTTLSeconds int    `json:"default_ttl_seconds"`
	RedisAddr         string `json:"redis_addr"`
	RedisPassword     string `json:"redis_password"`
	RedisDB           int    `json:"redis_db"`
}

// LLMConfig holds LLM gateway configuration.
type LLMConfig struct {
	Enabled                  bool    `json:"enabled"`
	BaseURL                  string  `json:"base_url"`
	APIKey                   string  `json:"api_key"`
	Model                    string  `json:"model"`
	FallbackThreshold        float64 `json:"fallback_threshold"`
	MaxCallsPerUserPerMinute int     `json:"max_calls_per_user_per_minute"`
}

// PipelineConfig holds recommendation pipeline configuration.
type PipelineConfig struct {
	DeadlineSeconds   int    `json:"deadline_seconds"`
	CatalogVersionTag string `json:"catalog_version_tag"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	Environment string `json:"environment"`
}

// LoadConfig loads configuration from environment variables and/or a
// JSON config file. Environment variables take precedence over file
// values. Unknown keys in the file are rejected.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("SERVER_PORT", "8080"),
			Host:               getEnv("SERVER_HOST", ""),
			MaxRequestBodySize: getEnvInt64("MAX_REQUEST_BODY_SIZE", 1<<20),
			AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./card_advisor.db"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			Rate:    getEnvInt("RATE_LIMIT_RATE", 100),
			Window:  getEnvInt("RATE_LIMIT_WINDOW", 60),
		},
		Cache: CacheConfig{
			Backend:           getEnv("CACHE_BACKEND", "memory"),
			MaxSize:           getEnvInt("CACHE_MAX_SIZE", 1000),
			DefaultTTLSeconds: getEnvInt("CACHE_DEFAULT_TTL_SECONDS", 3600),
			RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:     getEnv("REDIS_PASSWORD", ""),
			RedisDB:           getEnvInt("REDIS_DB", 0),
		},
		LLM: LLMConfig{
			Enabled:                  getEnvBool("LLM_ENABLED", true),
			BaseURL:                  getEnv("LLM_BASE_URL", ""),
			APIKey:                   getEnv("LLM_API_KEY", ""),
			Model:                    getEnv("LLM_MODEL", "gpt-4o-mini"),
			FallbackThreshold:        getEnvFloat("LLM_FALLBACK_THRESHOLD", 0.6),
			MaxCallsPerUserPerMinute: getEnvInt("LLM_MAX_CALLS_PER_USER_PER_MINUTE", 10),
		},
		Pipeline: PipelineConfig{
			DeadlineSeconds:   getEnvInt("PIPELINE_DEADLINE_SECONDS", 30),
			CatalogVersionTag: getEnv("CATALOG_VERSION_TAG", "v1"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("TRACING_ENDPOINT", "http://localhost:14268/api/traces"),
			Environment: getEnv("TRACING_ENVIRONMENT", "development"),
		},
	}

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		// Environment variables win over file values.
		overrideFromEnv(cfg)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a JSON file. Unknown keys are
// an error so typos surface at startup instead of silently defaulting.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// overrideFromEnv re-applies environment variables on top of file values.
func overrideFromEnv(cfg *Config) {
	setEnvString(&cfg.Server.Port, "SERVER_PORT")
	setEnvString(&cfg.Server.Host, "SERVER_HOST")
	setEnvInt64(&cfg.Server.MaxRequestBodySize, "MAX_REQUEST_BODY_SIZE")
	setEnvString(&cfg.Server.AllowedOrigins, "ALLOWED_ORIGINS")
	setEnvString(&cfg.Database.Path, "DATABASE_PATH")
	setEnvString(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	setEnvBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setEnvInt(&cfg.RateLimit.Rate, "RATE_LIMIT_RATE")
	setEnvInt(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW")
	setEnvString(&cfg.Cache.Backend, "CACHE_BACKEND")
	setEnvInt(&cfg.Cache.MaxSize, "CACHE_MAX_SIZE")
	setEnvInt(&cfg.Cache.DefaultTTLSeconds, "CACHE_DEFAULT_TTL_SECONDS")
	setEnvString(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	setEnvString(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	setEnvInt(&cfg.Cache.RedisDB, "REDIS_DB")
	setEnvBool(&cfg.LLM.Enabled, "LLM_ENABLED")
	setEnvString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setEnvString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setEnvString(&cfg.LLM.Model, "LLM_MODEL")
	setEnvFloat(&cfg.LLM.FallbackThreshold, "LLM_FALLBACK_THRESHOLD")
	setEnvInt(&cfg.LLM.MaxCallsPerUserPerMinute, "LLM_MAX_CALLS_PER_USER_PER_MINUTE")
	setEnvInt(&cfg.Pipeline.DeadlineSeconds, "PIPELINE_DEADLINE_SECONDS")
	setEnvString(&cfg.Pipeline.CatalogVersionTag, "CATALOG_VERSION_TAG")
	setEnvBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setEnvString(&cfg.Tracing.Endpoint, "TRACING_ENDPOINT")
	setEnvString(&cfg.Tracing.Environment, "TRACING_ENVIRONMENT")
}

func setEnvString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setEnvBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = strings.ToLower(value) == "true" || value == "1"
	}
}

func setEnvInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			*dst = i
		}
	}
}

func setEnvInt64(dst *int64, key string) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			*dst = i
		}
	}
}

func setEnvFloat(dst *float64, key string) {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			*dst = f
		}
	}
}

// getEnv gets an environment variable or returns the default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvInt64 gets an int64 environment variable or returns the default value.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable or returns the default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache backend must be 'memory' or 'redis'")
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache max size must be positive")
	}
	if c.Cache.DefaultTTLSeconds <= 0 {
		return fmt.Errorf("cache default TTL must be positive")
	}
	if c.LLM.FallbackThreshold < 0 || c.LLM.FallbackThreshold > 1 {
		return fmt.Errorf("LLM fallback threshold must be between 0 and 1")
	}
	if c.LLM.MaxCallsPerUserPerMinute <= 0 {
		return fmt.Errorf("LLM max calls per user per minute must be positive")
	}
	if c.Pipeline.DeadlineSeconds <= 0 {
		return fmt.Errorf("pipeline deadline must be positive")
	}
	if c.Pipeline.CatalogVersionTag == "" {
		return fmt.Errorf("catalog version tag is required")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	return nil
}
