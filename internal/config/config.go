// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/caregraph"
	"github.com/aretw0/caregraph/internal/sanitize"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type Config struct {
	Env       string
	Addr      string
	LogLevel  string
	LogFormat string

	Session  SessionConfig
	Engine   EngineConfig
	Uploads  UploadConfig
	OpenAI   OpenAIConfig
	OTel     OTelConfig
	Security SecurityConfig
}

type SessionConfig struct {
	Store           string
	RedisURL        string
	Dir             string
	ThreadTTL       time.Duration
	JanitorInterval time.Duration
}

type EngineConfig struct {
	Delivery    caregraph.Delivery
	TurnTimeout time.Duration
	Topology    string // optional YAML override
	MaxInput    int
}

type UploadConfig struct {
	Dir     string
	MaxSize int64
	NodeID  int64
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type SecurityConfig struct {
	EncryptionKey  string
	FallbackKeys   []string
	RedactPII      bool
	AllowedOrigins []string
}

// Load reads the configuration from environment variables.
// In development, a .env file in the working directory is loaded first.
func Load() (Config, error) {
	if getEnv("CAREGRAPH_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	delivery, err := caregraph.ParseDelivery(getEnv("CAREGRAPH_DELIVERY", ""))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Env:       getEnv("CAREGRAPH_ENV", "development"),
		Addr:      getEnv("CAREGRAPH_ADDR", ":8080"),
		LogLevel:  getEnv("CAREGRAPH_LOG_LEVEL", "info"),
		LogFormat: getEnv("CAREGRAPH_LOG_FORMAT", "text"),
		Session: SessionConfig{
			Store:           getEnv("CAREGRAPH_STORE", ""),
			RedisURL:        getEnv("CAREGRAPH_REDIS_URL", ""),
			Dir:             getEnv("CAREGRAPH_SESSION_DIR", ".caregraph/threads"),
			ThreadTTL:       getEnvDuration("CAREGRAPH_THREAD_TTL", 24*time.Hour),
			JanitorInterval: getEnvDuration("CAREGRAPH_JANITOR_INTERVAL", 5*time.Minute),
		},
		Engine: EngineConfig{
			Delivery:    delivery,
			TurnTimeout: getEnvDuration("CAREGRAPH_TURN_TIMEOUT", caregraph.DefaultTurnTimeout),
			Topology:    getEnv("CAREGRAPH_TOPOLOGY", ""),
			MaxInput:    getEnvInt("CAREGRAPH_MAX_INPUT", sanitize.DefaultMaxInputSize),
		},
		Uploads: UploadConfig{
			Dir:     getEnv("CAREGRAPH_UPLOAD_DIR", "uploads"),
			MaxSize: int64(getEnvInt("CAREGRAPH_MAX_UPLOAD", 10<<20)),
			NodeID:  int64(getEnvInt("CAREGRAPH_NODE_ID", 1)),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "caregraph"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", caregraph.Version),
		},
		Security: SecurityConfig{
			EncryptionKey:  getEnv("CAREGRAPH_ENCRYPTION_KEY", ""),
			FallbackKeys:   getEnvList("CAREGRAPH_ENCRYPTION_FALLBACK_KEYS"),
			RedactPII:      getEnvBool("CAREGRAPH_REDACT_PII", false),
			AllowedOrigins: getEnvList("CAREGRAPH_ALLOWED_ORIGINS"),
		},
	}

	if cfg.Session.Store == "" {
		cfg.Session.Store = StoreMemory
		if cfg.Session.RedisURL != "" {
			cfg.Session.Store = StoreRedis
		}
	}
	if len(cfg.Security.AllowedOrigins) == 0 {
		cfg.Security.AllowedOrigins = []string{"*"}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Flags may change fields after Load,
// so callers validate again before use.
func (c Config) Validate() error {
	switch c.Session.Store {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.Session.RedisURL == "" {
			return errors.New("CAREGRAPH_REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, file or redis)", c.Session.Store)
	}
	if c.Engine.TurnTimeout < 0 {
		return errors.New("CAREGRAPH_TURN_TIMEOUT must not be negative")
	}
	if c.Uploads.NodeID < 0 || c.Uploads.NodeID > 1023 {
		return fmt.Errorf("CAREGRAPH_NODE_ID must be within 0..1023, got %d", c.Uploads.NodeID)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c SecurityConfig) EncryptionEnabled() bool {
	return c.EncryptionKey != ""
}

// getEnv treats an empty variable as unset.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
