// ABOUTME: Configuration loading and parsing for agent-hub
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agent-hub configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Agents   AgentsConfig   `yaml:"agents"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// Required disables anonymous access when true (the default)
	Required  *bool  `yaml:"required"`
	JWTSecret string `yaml:"jwt_secret"`

	SessionDuration time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	SessionDurationRaw string `yaml:"session_duration"`
}

// AgentsConfig holds outbound call timing configuration
type AgentsConfig struct {
	CardFetchTimeout time.Duration `yaml:"-"`
	InvokeTimeout    time.Duration `yaml:"-"`
	StreamTimeout    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	CardFetchTimeoutRaw string `yaml:"card_fetch_timeout"`
	InvokeTimeoutRaw    string `yaml:"invoke_timeout"`
	StreamTimeoutRaw    string `yaml:"stream_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default timeouts applied when the config file leaves them unset.
const (
	DefaultCardFetchTimeout = 10 * time.Second
	DefaultInvokeTimeout    = 30 * time.Second
	DefaultStreamTimeout    = 120 * time.Second
	DefaultSessionDuration  = 7 * 24 * time.Hour
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// AuthRequired reports whether authentication is enforced. Defaults to true
// when the config file doesn't say otherwise.
func (c *Config) AuthRequired() bool {
	if c.Auth.Required == nil {
		return true
	}
	return *c.Auth.Required
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.AuthRequired() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Agents.CardFetchTimeout == 0 {
		c.Agents.CardFetchTimeout = DefaultCardFetchTimeout
	}
	if c.Agents.InvokeTimeout == 0 {
		c.Agents.InvokeTimeout = DefaultInvokeTimeout
	}
	if c.Agents.StreamTimeout == 0 {
		c.Agents.StreamTimeout = DefaultStreamTimeout
	}
	if c.Auth.SessionDuration == 0 {
		c.Auth.SessionDuration = DefaultSessionDuration
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Agents.CardFetchTimeoutRaw != "" {
		cfg.Agents.CardFetchTimeout, err = time.ParseDuration(cfg.Agents.CardFetchTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing card_fetch_timeout %q: %w", cfg.Agents.CardFetchTimeoutRaw, err)
		}
	}

	if cfg.Agents.InvokeTimeoutRaw != "" {
		cfg.Agents.InvokeTimeout, err = time.ParseDuration(cfg.Agents.InvokeTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing invoke_timeout %q: %w", cfg.Agents.InvokeTimeoutRaw, err)
		}
	}

	if cfg.Agents.StreamTimeoutRaw != "" {
		cfg.Agents.StreamTimeout, err = time.ParseDuration(cfg.Agents.StreamTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing stream_timeout %q: %w", cfg.Agents.StreamTimeoutRaw, err)
		}
	}

	if cfg.Auth.SessionDurationRaw != "" {
		cfg.Auth.SessionDuration, err = time.ParseDuration(cfg.Auth.SessionDurationRaw)
		if err != nil {
			return fmt.Errorf("parsing session_duration %q: %w", cfg.Auth.SessionDurationRaw, err)
		}
	}

	return nil
}
