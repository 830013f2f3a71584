package models

import (
	"fmt"
	"strings"
)

// Dialect identifies the engine whose catalog is being reflected.
type Dialect string

const (
	DialectSQLServer Dialect = "sqlserver"
	DialectMySQL     Dialect = "mysql"
	DialectPostgres  Dialect = "postgres"
)

// ValidDialects contains all supported dialect values.
var ValidDialects = []Dialect{
	DialectSQLServer,
	DialectMySQL,
	DialectPostgres,
}

// ParseDialect normalizes a user-supplied dialect tag.
// "mssql" and "postgresql" are accepted as aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlserver", "mssql":
		return DialectSQLServer, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	}
	names := make([]string, len(ValidDialects))
	for i, d := range ValidDialects {
		names[i] = string(d)
	}
	return "", fmt.Errorf("unknown dialect %q (supported: %s)", s, strings.Join(names, ", "))
}

// DefaultSchema returns the schema whose objects are stored unqualified.
func (d Dialect) DefaultSchema() string {
	switch d {
	case DialectSQLServer:
		return "dbo"
	case DialectPostgres:
		return "public"
	}
	return ""
}

// QualifiedName returns the stored object name: "schema.name" outside the
// default schema, the bare name otherwise. MySQL schemas are databases, so
// names there are never qualified.
func (d Dialect) QualifiedName(schema, name string) string {
	if schema == "" || d == DialectMySQL || schema == d.DefaultSchema() {
		return name
	}
	return schema + "." + name
}

func (d Dialect) String() string {
	return string(d)
}
