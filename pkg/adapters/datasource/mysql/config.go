package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      string // "false", "true", "skip-verify", "preferred"
	Timeout  time.Duration
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	opts := datasource.Options(config)
	cfg := &Config{
		Port:    DefaultPort(),
		TLS:     "preferred",
		Timeout: 30 * time.Second,
	}

	if dsn := opts.String(datasource.DSNKey); dsn != "" {
		return fromDSN(cfg, dsn)
	}

	var err error
	if cfg.Host, err = opts.Require("host"); err != nil {
		return nil, err
	}
	if port, ok := opts.Int("port"); ok {
		cfg.Port = port
	}
	if cfg.User, err = opts.Require("user", "username"); err != nil {
		return nil, err
	}
	cfg.Password = opts.String("password")

	// The catalog queries are scoped with DATABASE(), so a default schema is mandatory.
	if cfg.Database, err = opts.Require("database"); err != nil {
		return nil, err
	}
	if tls := opts.String("tls"); tls != "" {
		cfg.TLS = tls
	}
	if secs, ok := opts.Int("connection_timeout"); ok {
		cfg.Timeout = time.Duration(secs) * time.Second
	}
	return cfg, nil
}

// fromDSN fills cfg from a go-sql-driver DSN ("user:pass@tcp(host:3306)/db").
// Only TCP addresses are supported.
func fromDSN(cfg *Config, dsn string) (*Config, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	if parsed.Net != "tcp" {
		return nil, fmt.Errorf("unsupported mysql network %q", parsed.Net)
	}

	host, port, err := net.SplitHostPort(parsed.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse mysql address %q: %w", parsed.Addr, err)
	}
	cfg.Host = host
	if cfg.Port, err = strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("parse mysql port %q: %w", port, err)
	}

	cfg.User = parsed.User
	cfg.Password = parsed.Passwd
	cfg.Database = parsed.DBName
	if parsed.TLSConfig != "" {
		cfg.TLS = parsed.TLSConfig
	}
	if parsed.Timeout > 0 {
		cfg.Timeout = parsed.Timeout
	}

	if cfg.User == "" {
		return nil, fmt.Errorf("user is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	return cfg, nil
}
