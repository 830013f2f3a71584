package mssql

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod determines which authentication to use
	// Options: "sql", "service_principal"
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	// Connection options
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int

	// DSN is a complete sqlserver:// URL; overrides the fields above.
	DSN string
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from a generic config map and auto-detects auth method.
func FromMap(config map[string]any) (*Config, error) {
	opts := datasource.Options(config)
	cfg := &Config{
		Port:              DefaultPort(),
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}

	if cfg.DSN = opts.String(datasource.DSNKey); cfg.DSN != "" {
		return cfg, nil
	}

	var err error
	if cfg.Host, err = opts.Require("host"); err != nil {
		return nil, err
	}
	if port, ok := opts.Int("port"); ok {
		cfg.Port = port
	}
	if cfg.Database, err = opts.Require("database"); err != nil {
		return nil, err
	}

	// encrypt also takes the driver's "strict" mode.
	if encrypt, ok := opts.Bool("encrypt"); ok {
		cfg.Encrypt = encrypt
	} else if opts.String("encrypt") == "strict" {
		cfg.Encrypt = true
	}
	if trust, ok := opts.Bool("trust_server_certificate"); ok {
		cfg.TrustServerCertificate = trust
	}
	if secs, ok := opts.Int("connection_timeout"); ok {
		cfg.ConnectionTimeout = secs
	}

	cfg.AuthMethod = opts.String("auth_method")
	if cfg.AuthMethod == "" {
		cfg.AuthMethod = "sql"
		if opts.Has("client_id") {
			cfg.AuthMethod = "service_principal"
		}
	}

	switch cfg.AuthMethod {
	case "sql":
		cfg.Username = opts.String("username", "user")
		cfg.Password = opts.String("password")
	case "service_principal":
		cfg.TenantID = opts.String("tenant_id")
		cfg.ClientID = opts.String("client_id")
		cfg.ClientSecret = opts.String("client_secret")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case "sql":
		if c.Username == "" {
			return fmt.Errorf("username is required for SQL authentication")
		}
	case "service_principal":
		if c.TenantID == "" {
			return fmt.Errorf("tenant_id is required for service principal")
		}
		if c.ClientID == "" {
			return fmt.Errorf("client_id is required for service principal")
		}
		if c.ClientSecret == "" {
			return fmt.Errorf("client_secret is required for service principal")
		}
	default:
		return fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", c.AuthMethod)
	}

	return nil
}
