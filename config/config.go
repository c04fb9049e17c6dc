package config

import (
	"fmt"
	"time"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Fetch       FetchConfig       `yaml:"fetch"`
	Thinking    ThinkingConfig    `yaml:"thinking"`
	Logging     LoggingConfig     `yaml:"logging"`
	StatsServer StatsServerConfig `yaml:"stats_server"`
}

// FetchConfig holds settings for the outbound fetch layer.
type FetchConfig struct {
	Timeout                 Duration `yaml:"timeout"`
	MaxRetries              int      `yaml:"max_retries"`
	RetryDelay              Duration `yaml:"retry_delay"`
	ExponentialBackoff      *bool    `yaml:"exponential_backoff"` // nil = true
	MaxBackoff              Duration `yaml:"max_backoff"`
	CircuitBreakerThreshold int      `yaml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   Duration `yaml:"circuit_breaker_timeout"`
	BlacklistTTL            Duration `yaml:"blacklist_ttl"`
	MaxContentLength        int64    `yaml:"max_content_length"`
	MaxConcurrent           int      `yaml:"max_concurrent"`
}

// ThinkingConfig holds settings for the step orchestrator.
type ThinkingConfig struct {
	GlobalTimeout Duration `yaml:"global_timeout"`
	StepTimeout   Duration `yaml:"step_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// StatsServerConfig holds the optional HTTP stats endpoint settings.
type StatsServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ExponentialEnabled reports whether exponential backoff is on; it defaults
// to true when the key is absent from the file.
func (c FetchConfig) ExponentialEnabled() bool {
	return c.ExponentialBackoff == nil || *c.ExponentialBackoff
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
