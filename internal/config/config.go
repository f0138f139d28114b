package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Command-line only
	SessionID string `yaml:"-"` // Resume an archived session by ID
	Debug     bool   `yaml:"-"`
}

// BackendConfig holds the assistant backend location
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"-"` // Zero means requests wait until they settle

	TimeoutRaw string `yaml:"timeout"`
}

// AuthConfig holds the credential or the login used to obtain one
type AuthConfig struct {
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StorageConfig holds transcript archive configuration
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// TelemetryConfig holds OpenTelemetry export configuration
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    "supportchat.db",
		},
		Logging: LoggingConfig{
			Dir:   "logs",
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

// Load reads a configuration file from the given path on top of the defaults.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// Finalize parses derived fields and validates the result
func (c *Config) Finalize() error {
	if c.Backend.TimeoutRaw != "" {
		d, err := time.ParseDuration(c.Backend.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing backend.timeout %q: %w", c.Backend.TimeoutRaw, err)
		}
		c.Backend.Timeout = d
	}

	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an http(s) URL, got %q", c.Backend.BaseURL)
	}

	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}

	if c.Auth.Username != "" && c.Auth.Password == "" {
		return fmt.Errorf("auth.password is required when auth.username is set")
	}

	if c.Storage.Enabled && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage is enabled")
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Dir == "" {
		return fmt.Errorf("logging.dir is required")
	}

	return nil
}

// LogLevel returns the configured slog level; debug mode forces Debug
func (c *Config) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	level, _ := parseLevel(c.Logging.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", s)
	}
}
