package youtrack

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvBaseURL  = "YOUTRACK_URL"
	EnvLogin    = "YOUTRACK_LOGIN"
	EnvPassword = "YOUTRACK_PASSWORD"
	EnvToken    = "YOUTRACK_TOKEN"
	EnvPageSize = "YOUTRACK_PAGE_SIZE"
)

// Config is the file form of the client options.
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	Login     string        `yaml:"login"`
	Password  string        `yaml:"password"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	PageSize  int           `yaml:"page_size"`
	RateLimit RateLimit     `yaml:"rate_limit"`
}

// RateLimit configures client-side request throttling.
type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("youtrack: config %s: %s", e.Field, e.Message)
}

// LoadConfig reads a YAML config file. A .env file in the working directory
// is loaded first if present, and ${VAR} references in the file are expanded
// from the environment.
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config data after expanding environment variables.
func ParseConfig(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigFromEnv builds a config from YOUTRACK_* variables, loading .env if present.
func ConfigFromEnv() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Config{
		BaseURL:  os.Getenv(EnvBaseURL),
		Login:    os.Getenv(EnvLogin),
		Password: os.Getenv(EnvPassword),
		Token:    os.Getenv(EnvToken),
	}
	if v := os.Getenv(EnvPageSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ConfigError{Field: EnvPageSize, Message: "must be an integer"}
		}
		cfg.PageSize = n
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load .env: %w", err)
}

func (c *Config) setDefaults() {
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.PageSize == 0 {
		c.PageSize = defaultPageSize
	}
}

// Validate checks that the config can build a client.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return &ConfigError{Field: "base_url", Message: "is required"}
	}
	if c.Token == "" && (c.Login == "" || c.Password == "") {
		return &ConfigError{Field: "login", Message: "login and password, or token, are required"}
	}
	if c.Timeout < 0 {
		return &ConfigError{Field: "timeout", Message: "must not be negative"}
	}
	if c.PageSize < 0 || c.PageSize > maxPageSize {
		return &ConfigError{Field: "page_size", Message: fmt.Sprintf("must be between 1 and %d", maxPageSize)}
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		return &ConfigError{Field: "rate_limit", Message: "must not be negative"}
	}
	return nil
}

// Options converts the config to client options.
func (c *Config) Options() []ClientOption {
	opts := []ClientOption{
		WithBaseURL(c.BaseURL),
		WithTimeout(c.Timeout),
		WithPageSize(c.PageSize),
	}
	if c.Token != "" {
		opts = append(opts, WithToken(c.Token))
	} else {
		opts = append(opts, WithCredentials(c.Login, c.Password))
	}
	if c.UserAgent != "" {
		opts = append(opts, WithUserAgent(c.UserAgent))
	}
	if c.RateLimit.PerSecond > 0 {
		opts = append(opts, WithRateLimit(rate.Limit(c.RateLimit.PerSecond), c.RateLimit.Burst))
	}
	return opts
}
