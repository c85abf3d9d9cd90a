package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings for cmd/demo. It is intentionally small: the
// feed engine itself takes no configuration of its own beyond the feed
// tree JSON it is handed at parse time.
type Config struct {
	Redis   Redis   `yaml:"redis"`
	Session Session `yaml:"session"`
	Logging Logging `yaml:"logging"`
}

// Redis configures the session cache backend.
type Redis struct {
	URL string `yaml:"url"`
}

// Session holds the session.default_ttl setting. It is loaded and
// validated; cmd/demo does not read it, since its feed tree sets
// session_live_time itself.
type Session struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// Logging configures zerolog's global level and writer.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&config)
	overrideWithEnv(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for optional fields.
func setDefaults(config *Config) {
	if config.Redis.URL == "" {
		config.Redis.URL = "redis://localhost:6379"
	}
	if config.Session.DefaultTTL == 0 {
		config.Session.DefaultTTL = 30 * time.Minute
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "console"
	}
}

// overrideWithEnv overrides configuration with environment variables.
func overrideWithEnv(config *Config) {
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Redis.URL = redisURL
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if ttl := os.Getenv("SESSION_DEFAULT_TTL_SECONDS"); ttl != "" {
		if secs, err := strconv.Atoi(ttl); err == nil {
			config.Session.DefaultTTL = time.Duration(secs) * time.Second
		}
	}
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Redis.URL == "" {
		return fmt.Errorf("redis URL must not be empty")
	}
	if config.Session.DefaultTTL <= 0 {
		return fmt.Errorf("session default_ttl must be positive")
	}
	switch strings.ToLower(config.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", config.Logging.Level)
	}
	return nil
}
