package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for schemadoc.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, DSNs) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"SCHEMADOC_ENV" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	Log LogConfig `yaml:"log"`

	// Database is the PostgreSQL instance holding the SchemaStore.
	Database DatabaseConfig `yaml:"database"`

	// Source holds defaults for the database being documented.
	Source SourceConfig `yaml:"source"`

	Extraction ExtractionConfig `yaml:"extraction"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"SCHEMADOC_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"SCHEMADOC_LOG_FORMAT" env-default:"json"` // json or console
}

// DatabaseConfig holds SchemaStore PostgreSQL configuration.
type DatabaseConfig struct {
	// URL takes precedence over the discrete fields when set.
	URL string `yaml:"-" env:"SCHEMADOC_DATABASE_URL"` // Secret - not in YAML

	Host            string        `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"PGPORT" env-default:"5432"`
	User            string        `yaml:"user" env:"PGUSER" env-default:"schemadoc"`
	Password        string        `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database        string        `yaml:"database" env:"PGDATABASE" env-default:"schemadoc"`
	SSLMode         string        `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections  int32         `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"PGMAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"PGMAX_CONN_IDLE_TIME" env-default:"30m"`
}

// SourceConfig holds defaults for the `extract` command's source connection.
// Flags on the command line override these.
type SourceConfig struct {
	Dialect string `yaml:"dialect" env:"SCHEMADOC_SOURCE_DIALECT"`
	DSN     string `yaml:"-" env:"SCHEMADOC_SOURCE_DSN"` // Secret - not in YAML
}

// ExtractionConfig holds extraction run settings.
type ExtractionConfig struct {
	// Lock serializes runs per database with a PostgreSQL advisory lock.
	Lock bool `yaml:"lock" env:"SCHEMADOC_EXTRACTION_LOCK" env-default:"true"`

	// MetricsTextfile, when set, receives the run's metrics in Prometheus
	// text format (for node_exporter's textfile collector).
	MetricsTextfile string `yaml:"metrics_textfile" env:"SCHEMADOC_METRICS_TEXTFILE" env-default:""`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: configuration then comes from the
// environment alone. The version parameter is set on the returned Config.
func Load(path, version string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", c.Log.Format)
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max_connections must be positive")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection URL for the SchemaStore.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     ResolveHostForDocker(c.Host) + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	if c.Password == "" {
		u.User = url.User(c.User)
	}
	return u.String()
}
