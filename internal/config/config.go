package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Memory backend identifiers.
const (
	BackendInMemory = "inmemory"
	BackendRedis    = "redis"
)

// Config holds the full landmarkd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Vector    VectorConfig    `koanf:"vector"`
	Metadata  MetadataConfig  `koanf:"metadata"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Memory    MemoryConfig    `koanf:"memory"`
	Log       LogConfig       `koanf:"log"`
	Research  ResearchConfig  `koanf:"research"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// VectorConfig configures the semantic-search API client.
type VectorConfig struct {
	BaseURL string   `koanf:"base_url"`
	Timeout Duration `koanf:"timeout"`
}

// MetadataConfig configures the landmark metadata API client.
type MetadataConfig struct {
	BaseURL string   `koanf:"base_url"`
	Timeout Duration `koanf:"timeout"`
}

// OpenAIConfig configures the hosted model client.
type OpenAIConfig struct {
	Endpoint   string   `koanf:"endpoint"`
	APIKey     Secret   `koanf:"api_key"`
	Deployment string   `koanf:"deployment"`
	APIVersion string   `koanf:"api_version"`
	Timeout    Duration `koanf:"timeout"`
	MaxTokens  int      `koanf:"max_tokens"`
}

// MemoryConfig configures conversation memory.
type MemoryConfig struct {
	Enabled   bool     `koanf:"enabled"`
	TTL       Duration `koanf:"ttl"`
	Backend   string   `koanf:"backend"`
	RedisAddr string   `koanf:"redis_addr"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ResearchConfig configures retrieval behavior.
type ResearchConfig struct {
	MinScore float64 `koanf:"min_score"`
	TopK     int     `koanf:"top_k"`
}

// TelemetryConfig configures OTLP trace and metric export. Disabled by
// default; deployments without a collector lose nothing.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"` // grpc or http/protobuf
	Insecure       bool     `koanf:"insecure"`
	SampleRate     float64  `koanf:"sample_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Vector.Timeout == 0 {
		cfg.Vector.Timeout = Duration(15 * time.Second)
	}
	if cfg.Metadata.Timeout == 0 {
		cfg.Metadata.Timeout = Duration(10 * time.Second)
	}

	if cfg.OpenAI.Deployment == "" {
		cfg.OpenAI.Deployment = "gpt-4"
	}
	if cfg.OpenAI.APIVersion == "" {
		cfg.OpenAI.APIVersion = "2023-05-15"
	}
	if cfg.OpenAI.Timeout == 0 {
		cfg.OpenAI.Timeout = Duration(60 * time.Second)
	}
	if cfg.OpenAI.MaxTokens == 0 {
		cfg.OpenAI.MaxTokens = 2000
	}

	if cfg.Memory.TTL == 0 {
		cfg.Memory.TTL = Duration(24 * time.Hour)
	}
	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = BackendInMemory
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Research.MinScore == 0 {
		cfg.Research.MinScore = 0.6
	}
	if cfg.Research.TopK == 0 {
		cfg.Research.TopK = 10
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = Duration(15 * time.Second)
	}
}

// Validate checks that all required configuration is present and coherent.
// A validation failure is a fatal startup error.
func (c *Config) Validate() error {
	var problems []string

	if err := validateBaseURL(c.Vector.BaseURL); err != nil {
		problems = append(problems, fmt.Sprintf("vector.base_url: %v", err))
	}
	if err := validateBaseURL(c.Metadata.BaseURL); err != nil {
		problems = append(problems, fmt.Sprintf("metadata.base_url: %v", err))
	}
	if err := validateBaseURL(c.OpenAI.Endpoint); err != nil {
		problems = append(problems, fmt.Sprintf("openai.endpoint: %v", err))
	}
	if !c.OpenAI.APIKey.IsSet() {
		problems = append(problems, "openai.api_key: required")
	}

	switch c.Memory.Backend {
	case BackendInMemory:
	case BackendRedis:
		if c.Memory.RedisAddr == "" {
			problems = append(problems, "memory.redis_addr: required when memory.backend is redis")
		}
	default:
		problems = append(problems, fmt.Sprintf("memory.backend: unknown backend %q", c.Memory.Backend))
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("log.format: must be json or console, got %q", c.Log.Format))
	}

	if c.Research.MinScore < 0 || c.Research.MinScore > 1 {
		problems = append(problems, fmt.Sprintf("research.min_score: must be in [0,1], got %v", c.Research.MinScore))
	}
	if c.Research.TopK < 1 {
		problems = append(problems, fmt.Sprintf("research.top_k: must be positive, got %d", c.Research.TopK))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			problems = append(problems, "telemetry.endpoint: required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http/protobuf":
		default:
			problems = append(problems, fmt.Sprintf("telemetry.protocol: must be grpc or http/protobuf, got %q", c.Telemetry.Protocol))
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			problems = append(problems, fmt.Sprintf("telemetry.sample_rate: must be in [0,1], got %v", c.Telemetry.SampleRate))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
