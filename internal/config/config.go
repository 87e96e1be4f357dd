package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "REPORTES_"

var folioPrefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,16}$`)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Folio     FolioConfig     `yaml:"folio"`
	Retention RetentionConfig `yaml:"retention"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Client    ClientConfig    `yaml:"client"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// FolioConfig controls folio numbering.
type FolioConfig struct {
	Prefix string `yaml:"prefix"`
}

// RetentionConfig controls how long sent drafts stay in the database.
// A zero MaxAge disables the retention worker.
type RetentionConfig struct {
	Interval Duration `yaml:"interval"`
	MaxAge   Duration `yaml:"max_age"`
}

// ArchiveConfig contains S3-compatible storage settings for archived drafts.
// An empty Bucket keeps the server in local-only mode.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    *bool  `yaml:"use_ssl"`
	AccessKey string `yaml:"-"` // env-only, never in YAML
	SecretKey string `yaml:"-"` // env-only, never in YAML
}

// ClientConfig contains settings for the operator CLI acting as a draft client.
type ClientConfig struct {
	ServerURL  string `yaml:"server_url"`
	CachePath  string `yaml:"cache_path"`
	CacheQuota int    `yaml:"cache_quota"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv(envPrefix+"CONFIG_PATH", "config/reportes.yaml")

	// A missing file is not an error.
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used by tests and when the caller names the file.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/reportes.db",
		},
		Folio: FolioConfig{
			Prefix: "INAIR",
		},
		Retention: RetentionConfig{
			Interval: Duration(24 * time.Hour),
			MaxAge:   Duration(90 * 24 * time.Hour),
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
			Prefix: "reportes",
		},
		Client: ClientConfig{
			ServerURL:  "http://localhost:8080",
			CachePath:  "data/drafts-cache.db",
			CacheQuota: 5 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	envInt("PORT", &cfg.Server.Port)
	envDuration("READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	envString("DB_PATH", &cfg.Database.Path)

	// Folio
	if v := os.Getenv(envPrefix + "FOLIO_PREFIX"); v != "" {
		cfg.Folio.Prefix = strings.ToUpper(v)
	}

	// Retention
	envDuration("RETENTION_INTERVAL", &cfg.Retention.Interval)
	envDuration("RETENTION_MAX_AGE", &cfg.Retention.MaxAge)

	// Archive
	envString("ARCHIVE_ENDPOINT", &cfg.Archive.Endpoint)
	envString("ARCHIVE_REGION", &cfg.Archive.Region)
	envString("ARCHIVE_BUCKET", &cfg.Archive.Bucket)
	envString("ARCHIVE_PREFIX", &cfg.Archive.Prefix)
	envString("ARCHIVE_ACCESS_KEY", &cfg.Archive.AccessKey)
	envString("ARCHIVE_SECRET_KEY", &cfg.Archive.SecretKey)
	if v := os.Getenv(envPrefix + "ARCHIVE_USE_SSL"); v != "" {
		b := v == "true" || v == "1"
		cfg.Archive.UseSSL = &b
	}

	// Client
	envString("SERVER_URL", &cfg.Client.ServerURL)
	envString("CACHE_PATH", &cfg.Client.CachePath)
	envInt("CACHE_QUOTA", &cfg.Client.CacheQuota)

	// Log
	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FORMAT", &cfg.Log.Format)
}

func envString(name string, dst *string) {
	if v := os.Getenv(envPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(envPrefix + name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(name string, dst *Duration) {
	if v := os.Getenv(envPrefix + name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// validate checks that configuration values are usable.
func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if !folioPrefixPattern.MatchString(c.Folio.Prefix) {
		return fmt.Errorf("folio.prefix %q must be 1-16 uppercase letters or digits", c.Folio.Prefix)
	}
	if c.Retention.MaxAge > 0 && c.Retention.Interval <= 0 {
		return errors.New("retention.interval must be positive when retention is enabled")
	}
	if c.Archive.Bucket != "" && c.Archive.Endpoint == "" {
		return errors.New("archive.endpoint is required when archive.bucket is set")
	}
	if c.Client.CacheQuota < 0 {
		return errors.New("client.cache_quota must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
