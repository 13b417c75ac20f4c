package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimum environment for a valid config.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VECTOR_BASE_URL", "https://vector.example.org")
	t.Setenv("METADATA_BASE_URL", "https://metadata.example.org")
	t.Setenv("OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("OPENAI_API_KEY", "test-key")
}

func TestLoad_FromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("OPENAI_DEPLOYMENT", "gpt-4o")
	t.Setenv("MEMORY_TTL", "1h")
	t.Setenv("RESEARCH_MIN_SCORE", "0.7")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "https://vector.example.org", cfg.Vector.BaseURL)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Deployment)
	assert.Equal(t, time.Hour, cfg.Memory.TTL.Duration())
	assert.Equal(t, 0.7, cfg.Research.MinScore)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "test-key", cfg.OpenAI.APIKey.Value())
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "gpt-4", cfg.OpenAI.Deployment)
	assert.Equal(t, "2023-05-15", cfg.OpenAI.APIVersion)
	assert.Equal(t, 2000, cfg.OpenAI.MaxTokens)
	assert.True(t, cfg.Memory.Enabled, "memory is on by default")
	assert.Equal(t, 24*time.Hour, cfg.Memory.TTL.Duration())
	assert.Equal(t, BackendInMemory, cfg.Memory.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 0.6, cfg.Research.MinScore)
	assert.Equal(t, 10, cfg.Research.TopK)
}

func TestLoad_MemoryCanBeDisabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MEMORY_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Memory.Enabled)
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9999")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`server:
  port: 7000
log:
  level: debug
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port, "env should override YAML")
	assert.Equal(t, "debug", cfg.Log.Level, "YAML values without env override should apply")
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		omit string
	}{
		{"vector base url", "VECTOR_BASE_URL"},
		{"metadata base url", "METADATA_BASE_URL"},
		{"openai endpoint", "OPENAI_ENDPOINT"},
		{"openai api key", "OPENAI_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.omit, "")

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Run("bad base url scheme", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("VECTOR_BASE_URL", "ftp://vector.example.org")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vector.base_url")
	})

	t.Run("redis backend without addr", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("MEMORY_BACKEND", "redis")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memory.redis_addr")
	})

	t.Run("unknown backend", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("MEMORY_BACKEND", "dynamo")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memory.backend")
	})

	t.Run("min score out of range", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("RESEARCH_MIN_SCORE", "1.5")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "research.min_score")
	})

	t.Run("bad log format", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("LOG_FORMAT", "xml")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.format")
	})
}

func TestLoad_RedisBackend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MEMORY_BACKEND", "redis")
	t.Setenv("MEMORY_REDIS_ADDR", "localhost:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Memory.Backend)
	assert.Equal(t, "localhost:6379", cfg.Memory.RedisAddr)
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "server.port", envTransform("SERVER_PORT"))
	assert.Equal(t, "vector.base_url", envTransform("VECTOR_BASE_URL"))
	assert.Equal(t, "openai.api_key", envTransform("OPENAI_API_KEY"))
	assert.Equal(t, "memory.redis_addr", envTransform("MEMORY_REDIS_ADDR"))
	assert.Equal(t, "home", envTransform("HOME"), "no underscore means no section split")
}
