package postgres

import "github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
	MaxConns int32

	// DSN is a complete libpq URL or keyword string; overrides the fields above.
	DSN string
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	opts := datasource.Options(config)
	cfg := &Config{
		Port:    DefaultPort(),
		SSLMode: DefaultSSLMode(),
	}
	if n, ok := opts.Int("max_conns"); ok {
		cfg.MaxConns = int32(n)
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
	if cfg.User, err = opts.Require("user"); err != nil {
		return nil, err
	}
	cfg.Password = opts.String("password")
	if cfg.Database, err = opts.Require("database"); err != nil {
		return nil, err
	}
	if mode := opts.String("ssl_mode"); mode != "" {
		cfg.SSLMode = mode
	}
	return cfg, nil
}
