package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvConfig, "MILVUS_HOST", "MILVUS_PORT", "CASEBASE_PORT", "CASEBASE_LOG_LEVEL", "CASEBASE_AWAIT_READY"} {
		t.Setenv(key, "")
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "casebase.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "localhost", cfg.Milvus.Host)
	assert.Equal(t, 19530, cfg.Milvus.Port)
	assert.Equal(t, "localhost:19530", cfg.Milvus.Address())
	assert.Equal(t, "http://localhost:9091/healthz", cfg.Milvus.HealthURL())
	assert.Equal(t, 10*time.Second, cfg.Milvus.DialTimeout)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Pipeline.AwaitReady)
	assert.Equal(t, 10, cfg.Pipeline.RecordCount)
	assert.Equal(t, "IVF_FLAT", cfg.Pipeline.IndexType)
	assert.Equal(t, `{"nlist":1024}`, cfg.Pipeline.IndexParams)
	assert.Equal(t, 3, cfg.Pipeline.TopK)
	assert.True(t, cfg.Metrics.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, `
milvus:
  host: milvus.internal
  port: 29530
  dial_timeout: 3s
server:
  port: 9000
log:
  level: debug
  format: json
pipeline:
  await_ready: true
  record_count: 20
  index_type: HNSW
  index_params: '{"M":8,"efConstruction":64}'
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "milvus.internal:29530", cfg.Milvus.Address())
	assert.Equal(t, 9091, cfg.Milvus.HealthPort)
	assert.Equal(t, 3*time.Second, cfg.Milvus.DialTimeout)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Pipeline.AwaitReady)

	tables := cfg.Pipeline.Tables()
	assert.Equal(t, 20, tables.RecordCount)
	assert.Equal(t, "HNSW", tables.IndexType)
	assert.Equal(t, `{"M":8,"efConstruction":64}`, tables.IndexParams)
	assert.Equal(t, `{"nprobe":10}`, tables.SearchParams)
	assert.Len(t, tables.Stations, 12)
}

func TestLoadDiscoversFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfig, writeTemp(t, "server:\n  port: 7070\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "milvus:\n  host: from-file\n")
	t.Setenv("MILVUS_HOST", "from-env")
	t.Setenv("MILVUS_PORT", "19531")
	t.Setenv("CASEBASE_PORT", "8181")
	t.Setenv("CASEBASE_LOG_LEVEL", "WARN")
	t.Setenv("CASEBASE_AWAIT_READY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env:19531", cfg.Milvus.Address())
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Pipeline.AwaitReady)
}

func TestEnvOverrideErrors(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"MILVUS_PORT", "abc"},
		{"CASEBASE_PORT", "eighty"},
		{"CASEBASE_AWAIT_READY", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load(writeTemp(t, ""))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeTemp(t, "milvus: [not, a, map]\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty host", func(c *Config) { c.Milvus.Host = "" }, "milvus.host"},
		{"bad milvus port", func(c *Config) { c.Milvus.Port = 0 }, "milvus.port"},
		{"bad health port", func(c *Config) { c.Milvus.HealthPort = 70000 }, "milvus.health_port"},
		{"bad server port", func(c *Config) { c.Server.Port = -1 }, "server.port"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative records", func(c *Config) { c.Pipeline.RecordCount = -1 }, "pipeline.record_count"},
		{"zero topk", func(c *Config) { c.Pipeline.TopK = 0 }, "pipeline.top_k"},
		{"no index type", func(c *Config) { c.Pipeline.IndexType = "" }, "pipeline.index_type"},
		{"no metrics path", func(c *Config) { c.Metrics.Path = "" }, "metrics.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("joins errors", func(t *testing.T) {
		cfg := Defaults()
		cfg.Milvus.Host = ""
		cfg.Server.Port = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "milvus.host")
		assert.Contains(t, err.Error(), "server.port")
	})
}
