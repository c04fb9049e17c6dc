package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. A .env file in the working
// directory, when present, is loaded first so its values are visible to
// ${VAR} expansion.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Fetch.Timeout.Duration == 0 {
		cfg.Fetch.Timeout.Duration = 30 * time.Second
	}
	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 3
	}
	if cfg.Fetch.RetryDelay.Duration == 0 {
		cfg.Fetch.RetryDelay.Duration = time.Second
	}
	if cfg.Fetch.MaxBackoff.Duration == 0 {
		cfg.Fetch.MaxBackoff.Duration = 30 * time.Second
	}
	if cfg.Fetch.CircuitBreakerThreshold == 0 {
		cfg.Fetch.CircuitBreakerThreshold = 5
	}
	if cfg.Fetch.CircuitBreakerTimeout.Duration == 0 {
		cfg.Fetch.CircuitBreakerTimeout.Duration = 5 * time.Minute
	}
	if cfg.Fetch.BlacklistTTL.Duration == 0 {
		cfg.Fetch.BlacklistTTL.Duration = time.Hour
	}
	if cfg.Fetch.MaxContentLength == 0 {
		cfg.Fetch.MaxContentLength = 10 << 20
	}
	if cfg.Fetch.MaxConcurrent == 0 {
		cfg.Fetch.MaxConcurrent = 5
	}
	if cfg.Thinking.GlobalTimeout.Duration == 0 {
		cfg.Thinking.GlobalTimeout.Duration = 60 * time.Second
	}
	if cfg.Thinking.StepTimeout.Duration == 0 {
		cfg.Thinking.StepTimeout.Duration = 30 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.StatsServer.Port == 0 {
		cfg.StatsServer.Port = 8080
	}
}
