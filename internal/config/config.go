// Package config provides configuration management for Daybook.
// It loads settings from environment variables with the DAYBOOK_ prefix
// and provides sensible defaults for all configuration options.
//
// The event rules table (required fields per event type) is loaded
// separately from a YAML file; see rules.go.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration settings for the Daybook application.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Timeline TimelineConfig
	Session  SessionConfig
	Sources  SourcesConfig
	LLM      LLMConfig
}

// ServerConfig contains HTTP server configuration for the session
// snapshot stream.
type ServerConfig struct {
	Port int    // Server port (default: 7272)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to data directory for sqlite (default: ./data)
	PostgresDSN   string // PostgreSQL connection string when engine is postgres
}

// TimelineConfig contains skeleton builder tunables.
type TimelineConfig struct {
	GapThresholdMinutes int           // Minimum unaccounted minutes to report a gap (default: 60)
	FetchTimeout        time.Duration // Per-adapter fetch timeout (default: 5s)
}

// SessionConfig contains session manager tunables.
type SessionConfig struct {
	DistillAfterTurns int    // Turns since last distillation before distilling (default: 10)
	KeepVerbatimTurns int    // Most recent turns always kept verbatim (default: 5)
	EntityCacheSize   int    // LRU size of the entity-resolution cache (default: 512)
	RulesPath         string // Path to the event rules YAML file (default: ./rules.yaml)
}

// SourcesConfig contains source provider endpoints and limits.
type SourcesConfig struct {
	DeviceBaseURL    string  // Wearable provider API base URL
	DeviceAPIKey     string  // Wearable provider API key
	DeviceRateLimit  float64 // Wearable provider requests per second (default: 4)
	ReceiptsBaseURL  string  // Receipt/communication provider API base URL
	ReceiptsAPIKey   string  // Receipt/communication provider API key
	BreakerFailures  int     // Consecutive failures to trip the adapter breaker (default: 3)
	BreakerResetSecs int     // Seconds the breaker stays open (default: 30)
}

// LLMConfig contains the provider used for turn distillation.
type LLMConfig struct {
	Provider        string // ollama, openai, anthropic, none (default: none)
	OllamaURL       string // Ollama API URL (default: http://localhost:11434)
	OllamaModel     string // Ollama model name (default: qwen2.5:7b)
	OpenAIAPIKey    string // OpenAI API key
	OpenAIModel     string // OpenAI model name (default: gpt-4o-mini)
	AnthropicAPIKey string // Anthropic API key
	AnthropicModel  string // Anthropic model name (default: claude-3-5-haiku-20241022)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the DAYBOOK_ prefix.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("DAYBOOK_PORT", 7272),
			Host: getEnv("DAYBOOK_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("DAYBOOK_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("DAYBOOK_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("DAYBOOK_POSTGRES_DSN", ""),
		},
		Timeline: TimelineConfig{
			GapThresholdMinutes: getEnvInt("DAYBOOK_GAP_THRESHOLD_MINUTES", 60),
			FetchTimeout:        getEnvDuration("DAYBOOK_FETCH_TIMEOUT", 5*time.Second),
		},
		Session: SessionConfig{
			DistillAfterTurns: getEnvInt("DAYBOOK_DISTILL_AFTER_TURNS", 10),
			KeepVerbatimTurns: getEnvInt("DAYBOOK_KEEP_VERBATIM_TURNS", 5),
			EntityCacheSize:   getEnvInt("DAYBOOK_ENTITY_CACHE_SIZE", 512),
			RulesPath:         getEnv("DAYBOOK_RULES_PATH", "./rules.yaml"),
		},
		Sources: SourcesConfig{
			DeviceBaseURL:    getEnv("DAYBOOK_DEVICE_URL", ""),
			DeviceAPIKey:     getEnv("DAYBOOK_DEVICE_API_KEY", ""),
			DeviceRateLimit:  getEnvFloat("DAYBOOK_DEVICE_RATE_LIMIT", 4),
			ReceiptsBaseURL:  getEnv("DAYBOOK_RECEIPTS_URL", ""),
			ReceiptsAPIKey:   getEnv("DAYBOOK_RECEIPTS_API_KEY", ""),
			BreakerFailures:  getEnvInt("DAYBOOK_BREAKER_FAILURES", 3),
			BreakerResetSecs: getEnvInt("DAYBOOK_BREAKER_RESET_SECS", 30),
		},
		LLM: LLMConfig{
			Provider:        getEnv("DAYBOOK_LLM_PROVIDER", "none"),
			OllamaURL:       getEnv("DAYBOOK_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:     getEnv("DAYBOOK_OLLAMA_MODEL", "qwen2.5:7b"),
			OpenAIAPIKey:    getEnv("DAYBOOK_OPENAI_API_KEY", ""),
			OpenAIModel:     getEnv("DAYBOOK_OPENAI_MODEL", "gpt-4o-mini"),
			AnthropicAPIKey: getEnv("DAYBOOK_ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getEnv("DAYBOOK_ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		},
	}, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the variable exists but cannot be parsed, the default is used.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "5s") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
