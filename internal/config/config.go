package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the briefdesk orchestration engine.
type Config struct {
	Port      int
	Version   string
	State     StateConfig
	HITL      HITLConfig
	OpenAI    OpenAIConfig
	Telemetry TelemetryConfig
}

type StateConfig struct {
	// Driver selects the conversation state backend: "memory" or "redis".
	Driver   string
	RedisURL string
	// TTL bounds how long thread history is retained in Redis.
	TTL time.Duration
}

type HITLConfig struct {
	// ConfirmationTTL bounds how long a pending confirmation stays resumable.
	ConfirmationTTL time.Duration
	// JanitorInterval is how often expired checkpoints are swept.
	JanitorInterval time.Duration
}

type OpenAIConfig struct {
	// Enabled selects the model-backed classifier; rules-only when false.
	Enabled bool
	APIKey  string
	Model   string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("BRIEFDESK_PORT", 8080),
		Version: envStr("BRIEFDESK_VERSION", "0.2.0"),
		State: StateConfig{
			Driver:   envStr("BRIEFDESK_STATE_DRIVER", "memory"),
			RedisURL: envStr("BRIEFDESK_REDIS_URL", "redis://localhost:6379/0"),
			TTL:      envDuration("BRIEFDESK_STATE_TTL", 72*time.Hour),
		},
		HITL: HITLConfig{
			ConfirmationTTL: envDuration("BRIEFDESK_CONFIRMATION_TTL", 15*time.Minute),
			JanitorInterval: envDuration("BRIEFDESK_JANITOR_INTERVAL", time.Minute),
		},
		OpenAI: OpenAIConfig{
			Enabled: envBool("BRIEFDESK_OPENAI_ENABLED", false),
			APIKey:  envStr("OPENAI_API_KEY", ""),
			Model:   envStr("BRIEFDESK_OPENAI_MODEL", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", true),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "briefdesk-engine"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
