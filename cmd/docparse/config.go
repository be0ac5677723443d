package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full docparse service configuration.
type Config struct {
	Listen     string `yaml:"listen"`
	AuditDB    string `yaml:"audit_db"`
	MaxFileMB  int    `yaml:"max_file_mb"`
	RerankTopK int    `yaml:"rerank_top_k"`
	LogLevel   string `yaml:"log_level"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:     ":8086",
		AuditDB:    "db/docparse.db",
		MaxFileMB:  150,
		RerankTopK: 5,
		LogLevel:   "info",
	}
}

// LoadConfig reads and parses a YAML config file, merged over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.AuditDB == "" {
		return fmt.Errorf("audit_db is required")
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if c.RerankTopK <= 0 {
		return fmt.Errorf("rerank_top_k must be > 0")
	}
	return nil
}

// applyEnvOverrides lets the environment override file settings: PORT for
// the listen address, LOG_LEVEL for verbosity.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		c.Listen = ":" + v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// MaxFileBytes converts the configured limit to bytes.
func (c *Config) MaxFileBytes() int64 {
	return int64(c.MaxFileMB) * 1024 * 1024
}
