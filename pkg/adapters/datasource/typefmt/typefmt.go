// Package typefmt renders catalog type metadata as canonical display strings.
package typefmt

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// Unknown is returned when no type name is available.
const Unknown = "unknown"

// TypeMeta is the raw type information a catalog reports for a column or parameter.
type TypeMeta struct {
	Name      string
	MaxLength *int64 // bytes on SQL Server, characters elsewhere; -1 means MAX
	Precision *int64
	Scale     *int64
	// Full is a complete type string already rendered by the catalog
	// (MySQL COLUMN_TYPE, PostgreSQL format_type). Preferred when set.
	Full string
}

// Int64 returns a pointer to n, for building TypeMeta literals.
func Int64(n int64) *int64 {
	return &n
}

// Format maps type metadata to one canonical string for the given dialect.
// It never fails; missing metadata yields Unknown.
func Format(dialect models.Dialect, meta TypeMeta) string {
	switch dialect {
	case models.DialectSQLServer:
		return formatSQLServer(meta)
	case models.DialectMySQL:
		return formatMySQL(meta)
	case models.DialectPostgres:
		return formatPostgres(meta)
	}
	return formatGeneric(meta, false)
}

func formatSQLServer(meta TypeMeta) string {
	return formatGeneric(meta, true)
}

func formatMySQL(meta TypeMeta) string {
	if full := strings.TrimSpace(meta.Full); full != "" {
		return strings.ToLower(full)
	}
	return formatGeneric(meta, false)
}

// formatGeneric applies the rules shared by every dialect.
// byteLengths marks catalogs that report nchar/nvarchar lengths in bytes.
func formatGeneric(meta TypeMeta, byteLengths bool) string {
	name := strings.ToLower(strings.TrimSpace(meta.Name))
	if name == "" {
		return Unknown
	}

	switch name {
	case "varchar", "char", "binary", "varbinary":
		return withLength(name, meta.MaxLength, 1)
	case "nvarchar", "nchar":
		divisor := int64(1)
		if byteLengths {
			divisor = 2
		}
		return withLength(name, meta.MaxLength, divisor)
	case "decimal", "numeric":
		return withPrecision(name, meta.Precision, meta.Scale)
	}
	return name
}

func withLength(name string, length *int64, divisor int64) string {
	if length == nil {
		return name
	}
	if *length == -1 {
		return name + "(MAX)"
	}
	return fmt.Sprintf("%s(%d)", name, *length/divisor)
}

func withPrecision(name string, precision, scale *int64) string {
	if precision == nil {
		return name
	}
	if scale == nil {
		return fmt.Sprintf("%s(%d)", name, *precision)
	}
	return fmt.Sprintf("%s(%d,%d)", name, *precision, *scale)
}
