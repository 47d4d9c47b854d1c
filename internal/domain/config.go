package domain

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Transport types
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Session policies for the SSE transport
const (
	// SessionPolicyMulti lets every stream own its own session.
	SessionPolicyMulti = "multi"
	// SessionPolicyExclusive rejects a second stream while one is open.
	SessionPolicyExclusive = "exclusive"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultHTTPHost      = "0.0.0.0"
	DefaultHTTPPort      = 3000
	DefaultTimeout       = 30 * time.Second
	DefaultLogLevel      = "info"
	DefaultLogEnv        = "production"
	DefaultTransportType = TransportSSE
)

// Config represents the server configuration.
// Values are read from an optional YAML file and then overridden by
// environment variables (including a local .env file).
type Config struct {
	TestRail  TestRailConfig  `yaml:"testrail"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
}

// TestRailConfig holds the upstream API location and credentials.
type TestRailConfig struct {
	BaseURL  string        `yaml:"base_url" envconfig:"TESTRAIL_BASE_URL"`
	Username string        `yaml:"username" envconfig:"TESTRAIL_USERNAME"`
	APIKey   string        `yaml:"api_key" envconfig:"TESTRAIL_API_KEY"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TESTRAIL_TIMEOUT"`
}

// TransportConfig defines transport settings.
type TransportConfig struct {
	Type string     `yaml:"type" envconfig:"MCP_TRANSPORT"` // "stdio" or "sse"
	HTTP HTTPConfig `yaml:"http,omitempty"`
}

// HTTPConfig defines the SSE listener settings.
// Only used when transport type is "sse".
type HTTPConfig struct {
	Host          string `yaml:"host" envconfig:"MCP_HTTP_HOST"`
	Port          int    `yaml:"port" envconfig:"MCP_HTTP_PORT"`
	SessionPolicy string `yaml:"session_policy" envconfig:"MCP_SESSION_POLICY"`
}

// Addr returns the listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
	Env   string `yaml:"env" envconfig:"APP_ENV"`
}

// LoadConfig reads configuration with ReadConfig and validates the result.
func LoadConfig(path string) (*Config, error) {
	config, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// ReadConfig reads configuration from the YAML file at path (if it exists),
// overlays environment variables and applies defaults without validating.
// A missing file is not an error: the environment alone may configure the server.
func ReadConfig(path string) (*Config, error) {
	// Load .env if present; a missing file is fine
	_ = godotenv.Load()

	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("invalid YAML syntax in configuration file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// environment only
		default:
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	config.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	if c.TestRail.Timeout == 0 {
		c.TestRail.Timeout = DefaultTimeout
	}
	if c.Transport.Type == "" {
		c.Transport.Type = DefaultTransportType
	}
	if c.Transport.HTTP.Host == "" {
		c.Transport.HTTP.Host = DefaultHTTPHost
	}
	if c.Transport.HTTP.Port == 0 {
		c.Transport.HTTP.Port = DefaultHTTPPort
	}
	if c.Transport.HTTP.SessionPolicy == "" {
		c.Transport.HTTP.SessionPolicy = SessionPolicyMulti
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Env == "" {
		c.Log.Env = DefaultLogEnv
	}
}

// Validate checks the configuration for completeness and correctness.
// Missing credentials are reported first and wrap ErrMissingConfiguration.
func (c *Config) Validate() error {
	if err := c.TestRail.validateRequired(); err != nil {
		return err
	}

	var errs []string

	if err := c.TestRail.validateBaseURL(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.TestRail.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("invalid timeout %s: must not be negative", c.TestRail.Timeout))
	}

	if err := c.validateTransport(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateRequired reports every missing credential in one error.
func (tc *TestRailConfig) validateRequired() error {
	var missing []string
	if tc.BaseURL == "" {
		missing = append(missing, "TESTRAIL_BASE_URL")
	}
	if tc.Username == "" {
		missing = append(missing, "TESTRAIL_USERNAME")
	}
	if tc.APIKey == "" {
		missing = append(missing, "TESTRAIL_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s must be set", ErrMissingConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// validateBaseURL checks the base URL is an absolute http(s) URL.
func (tc *TestRailConfig) validateBaseURL() error {
	parsedURL, err := url.Parse(tc.BaseURL)
	if err != nil {
		return fmt.Errorf("TestRail base_url is invalid: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("TestRail base_url must use http or https scheme")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("TestRail base_url must include a host")
	}
	return nil
}

// validateTransport validates the transport configuration.
func (c *Config) validateTransport() error {
	var errs []string

	switch c.Transport.Type {
	case TransportStdio, TransportSSE:
	default:
		errs = append(errs, fmt.Sprintf("invalid transport type '%s': must be 'stdio' or 'sse'", c.Transport.Type))
	}

	if c.Transport.Type == TransportSSE {
		if c.Transport.HTTP.Port <= 0 || c.Transport.HTTP.Port > 65535 {
			errs = append(errs, fmt.Sprintf("invalid HTTP port %d: must be between 1 and 65535", c.Transport.HTTP.Port))
		}
		switch c.Transport.HTTP.SessionPolicy {
		case SessionPolicyMulti, SessionPolicyExclusive:
		default:
			errs = append(errs, fmt.Sprintf("invalid session policy '%s': must be 'multi' or 'exclusive'", c.Transport.HTTP.SessionPolicy))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
