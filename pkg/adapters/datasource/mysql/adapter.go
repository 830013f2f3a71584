package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/config"
)

// buildDSN renders the driver DSN through mysql.Config so credentials are escaped.
func buildDSN(cfg *Config) string {
	dsn := mysql.NewConfig()
	dsn.User = cfg.User
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(config.ResolveHostForDocker(cfg.Host), strconv.Itoa(cfg.Port))
	dsn.DBName = cfg.Database
	dsn.TLSConfig = cfg.TLS
	dsn.Timeout = cfg.Timeout
	dsn.ParseTime = true
	return dsn.FormatDSN()
}

// Open creates an owned MySQL pool and verifies it with a ping.
func Open(ctx context.Context, cfg *Config) (*datasource.SQLDBWrapper, error) {
	db, err := sql.Open("mysql", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	wrapper := datasource.NewSQLDBWrapper(db)
	if err := wrapper.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return wrapper, nil
}
