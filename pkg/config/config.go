// Package config provides configuration for the casebase service.
//
// Configuration is loaded in layers:
//  1. Built-in defaults
//  2. YAML config file (explicit path, CASEBASE_CONFIG, ./casebase.yaml)
//  3. Environment variable overrides
//  4. Validation
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mmga-lab/casebase/pkg/catalog"
)

// Config holds all configuration for casebase.
type Config struct {
	Milvus   MilvusConfig   `yaml:"milvus"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// MilvusConfig holds the vector database connection settings.
type MilvusConfig struct {
	Host        string        `yaml:"host"`         // default: "localhost"
	Port        int           `yaml:"port"`         // default: 19530
	HealthPort  int           `yaml:"health_port"`  // default: 9091
	DialTimeout time.Duration `yaml:"dial_timeout"` // default: 10s
}

// Address returns host:port for the gRPC client.
func (m MilvusConfig) Address() string {
	return net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
}

// HealthURL returns the liveness endpoint of the Milvus process.
func (m MilvusConfig) HealthURL() string {
	return fmt.Sprintf("http://%s/healthz", net.JoinHostPort(m.Host, strconv.Itoa(m.HealthPort)))
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error", default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// PipelineConfig controls the provisioning run.
type PipelineConfig struct {
	AwaitReady   bool   `yaml:"await_ready"`   // default: false
	IndexSync    bool   `yaml:"index_sync"`    // default: false
	RecordCount  int    `yaml:"record_count"`  // default: 10
	IndexType    string `yaml:"index_type"`    // default: "IVF_FLAT"
	MetricType   string `yaml:"metric_type"`   // default: "L2"
	IndexParams  string `yaml:"index_params"`  // default: {"nlist":1024}
	SearchParams string `yaml:"search_params"` // default: {"nprobe":10}
	TopK         int    `yaml:"top_k"`         // default: 3
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	tables := catalog.DefaultTables()
	return Config{
		Milvus: MilvusConfig{
			Host:        "localhost",
			Port:        19530,
			HealthPort:  9091,
			DialTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Pipeline: PipelineConfig{
			RecordCount:  tables.RecordCount,
			IndexType:    tables.IndexType,
			MetricType:   tables.MetricType,
			IndexParams:  tables.IndexParams,
			SearchParams: tables.SearchParams,
			TopK:         tables.TopK,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Tables returns the default lookup tables with the pipeline overrides applied.
func (p PipelineConfig) Tables() catalog.Tables {
	t := catalog.DefaultTables()
	t.RecordCount = p.RecordCount
	t.IndexType = p.IndexType
	t.MetricType = p.MetricType
	t.IndexParams = p.IndexParams
	t.SearchParams = p.SearchParams
	t.TopK = p.TopK
	return t
}
