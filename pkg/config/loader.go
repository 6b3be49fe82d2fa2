package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "CASEBASE_CONFIG"

// Load reads defaults, then the YAML file, then environment overrides, and
// validates the result.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// discoverConfigFile returns the explicit path, then CASEBASE_CONFIG, then
// ./casebase.yaml if it exists, else "".
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("casebase.yaml"); err == nil {
		return "casebase.yaml"
	}
	return ""
}

// loadYAMLFile parses path into cfg. Absent keys keep their current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("MILVUS_HOST"); v != "" {
		cfg.Milvus.Host = v
	}
	if v := os.Getenv("MILVUS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MILVUS_PORT: %w", err)
		}
		cfg.Milvus.Port = port
	}
	if v := os.Getenv("CASEBASE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CASEBASE_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CASEBASE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CASEBASE_AWAIT_READY"); v != "" {
		await, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CASEBASE_AWAIT_READY: %w", err)
		}
		cfg.Pipeline.AwaitReady = await
	}
	return nil
}
