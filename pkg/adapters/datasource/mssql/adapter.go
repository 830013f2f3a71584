package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"github.com/microsoft/go-mssqldb/azuread"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
)

// Open creates an owned SQL Server pool and verifies it with a ping.
func Open(ctx context.Context, cfg *Config) (*datasource.SQLDBWrapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	driver, connStr := buildConnectionString(cfg)
	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", cfg.AuthMethod, err)
	}

	wrapper := datasource.NewSQLDBWrapper(db)
	if err := wrapper.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sql server: %w", err)
	}
	return wrapper, nil
}

// buildConnectionString returns the driver name and URL for the auth method.
// Service principal logins go through the azuread driver with fedauth.
func buildConnectionString(cfg *Config) (string, string) {
	if cfg.DSN != "" {
		if strings.Contains(strings.ToLower(cfg.DSN), "fedauth=") {
			return azuread.DriverName, cfg.DSN
		}
		return "sqlserver", cfg.DSN
	}

	query := url.Values{}
	query.Add("database", cfg.Database)

	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}

	if cfg.AuthMethod == "service_principal" {
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
		query.Add("password", cfg.ClientSecret)
		return azuread.DriverName, fmt.Sprintf("sqlserver://%s:%d?%s", cfg.Host, cfg.Port, query.Encode())
	}

	return "sqlserver", fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		query.Encode(),
	)
}
