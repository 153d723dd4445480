package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the triage server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	LogLevel           string
	RateLimitPerMinute int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

// AIConfig holds provider credentials. A provider is configured when its API
// key is present; the rest of its settings only matter in that case.
type AIConfig struct {
	PrimaryProvider  string
	InferenceTimeout time.Duration
	Anthropic        AnthropicConfig
	OpenAI           OpenAIConfig
	Gemini           GeminiConfig
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

var validProviders = map[string]bool{
	"claude": true,
	"gpt":    true,
	"gemini": true,
}

// Load reads configuration from environment variables (and a .env file, when one
// exists) and returns a validated Config.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("TRIAGE_PORT", 8080),
			Env:                envString("TRIAGE_ENV", "development"),
			LogLevel:           envString("LOG_LEVEL", "info"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Database: LoadDatabase(),
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: LoadAI(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the Postgres settings, without validation.
func LoadDatabase() DatabaseConfig {
	loadDotEnv()
	return DatabaseConfig{
		URL:             os.Getenv("DATABASE_URL"),
		MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
	}
}

// LoadAI reads only the provider settings. The CLI uses it to talk to providers
// without a database.
func LoadAI() AIConfig {
	loadDotEnv()
	return AIConfig{
		PrimaryProvider:  envString("AI_PRIMARY_PROVIDER", "claude"),
		InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
		Anthropic: AnthropicConfig{
			APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Gemini: GeminiConfig{
			APIKey:  os.Getenv("GEMINI_API_KEY"),
			Model:   envString("GEMINI_MODEL", "gemini-2.0-flash"),
			BaseURL: os.Getenv("GEMINI_BASE_URL"),
		},
	}
}

// ConfiguredProviders lists providers whose credentials are present, in
// priority order.
func (c AIConfig) ConfiguredProviders() []string {
	var out []string
	if c.Anthropic.APIKey != "" {
		out = append(out, "claude")
	}
	if c.OpenAI.APIKey != "" {
		out = append(out, "gpt")
	}
	if c.Gemini.APIKey != "" {
		out = append(out, "gemini")
	}
	return out
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validProviders[c.AI.PrimaryProvider] {
		return fmt.Errorf("AI_PRIMARY_PROVIDER must be one of claude, gpt, gemini; got %q", c.AI.PrimaryProvider)
	}

	if c.AI.InferenceTimeout <= 0 {
		return fmt.Errorf("AI_INFERENCE_TIMEOUT_SECS must be positive")
	}

	return nil
}

func loadDotEnv() {
	path := envString("TRIAGE_ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read env file", "path", path, "error", err)
	}
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
