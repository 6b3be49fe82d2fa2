package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errs []error

	if c.Milvus.Host == "" {
		errs = append(errs, fmt.Errorf("milvus.host is required"))
	}
	if c.Milvus.Port <= 0 || c.Milvus.Port > 65535 {
		errs = append(errs, fmt.Errorf("milvus.port must be in 1..65535, got %d", c.Milvus.Port))
	}
	if c.Milvus.HealthPort <= 0 || c.Milvus.HealthPort > 65535 {
		errs = append(errs, fmt.Errorf("milvus.health_port must be in 1..65535, got %d", c.Milvus.HealthPort))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be \"debug\", \"info\", \"warn\" or \"error\", got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	if c.Pipeline.RecordCount < 0 {
		errs = append(errs, fmt.Errorf("pipeline.record_count must be >= 0, got %d", c.Pipeline.RecordCount))
	}
	if c.Pipeline.TopK <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.top_k must be > 0, got %d", c.Pipeline.TopK))
	}
	if c.Pipeline.IndexType == "" {
		errs = append(errs, fmt.Errorf("pipeline.index_type is required"))
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		errs = append(errs, fmt.Errorf("metrics.path is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}
