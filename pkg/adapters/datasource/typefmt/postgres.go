package typefmt

import (
	"fmt"
	"strings"
)

// postgresNames maps udt names (and common aliases) to their display names.
var postgresNames = map[string]string{
	"int2":        "smallint",
	"smallint":    "smallint",
	"int4":        "integer",
	"int":         "integer",
	"integer":     "integer",
	"int8":        "bigint",
	"bigint":      "bigint",
	"float4":      "real",
	"real":        "real",
	"float8":      "double precision",
	"double":      "double precision",
	"bool":        "boolean",
	"boolean":     "boolean",
	"timestamp":   "timestamp without time zone",
	"timestamptz": "timestamp with time zone",
	"time":        "time without time zone",
	"timetz":      "time with time zone",
	"date":        "date",
	"interval":    "interval",
	"uuid":        "uuid",
	"json":        "json",
	"jsonb":       "jsonb",
	"text":        "text",
	"bytea":       "bytea",
	"money":       "money",
	"inet":        "inet",
	"cidr":        "cidr",
	"macaddr":     "macaddr",
	"macaddr8":    "macaddr8",
	"point":       "point",
	"line":        "line",
	"lseg":        "lseg",
	"box":         "box",
	"path":        "path",
	"polygon":     "polygon",
	"circle":      "circle",
	"xml":         "xml",
	"tsvector":    "tsvector",
	"tsquery":     "tsquery",
	"oid":         "oid",
	"serial":      "serial",
	"serial4":     "serial",
	"bigserial":   "bigserial",
	"serial8":     "bigserial",
	"smallserial": "smallserial",
	"serial2":     "smallserial",

	"timestamp without time zone": "timestamp without time zone",
	"timestamp with time zone":    "timestamp with time zone",
	"time without time zone":      "time without time zone",
	"time with time zone":         "time with time zone",
	"double precision":            "double precision",
}

// postgresLengthNames are types rendered with a character or bit length.
var postgresLengthNames = map[string]string{
	"varchar":           "character varying",
	"character varying": "character varying",
	"bpchar":            "character",
	"char":              "character",
	"character":         "character",
	"bit":               "bit",
	"varbit":            "bit varying",
	"bit varying":       "bit varying",
}

func formatPostgres(meta TypeMeta) string {
	name := strings.ToLower(strings.TrimSpace(meta.Name))
	if name == "" {
		if full := strings.TrimSpace(meta.Full); full != "" {
			return full
		}
		return Unknown
	}

	// Array udt names carry a leading underscore: _int4 -> integer[].
	if elem, ok := strings.CutPrefix(name, "_"); ok && elem != "" {
		return formatPostgres(TypeMeta{Name: elem}) + "[]"
	}

	if display, ok := postgresNames[name]; ok {
		return display
	}
	if display, ok := postgresLengthNames[name]; ok {
		return withLength(display, meta.MaxLength, 1)
	}
	if name == "numeric" || name == "decimal" {
		return withPrecision("numeric", meta.Precision, meta.Scale)
	}

	// Unrecognized (domains, enums, extension types).
	switch {
	case meta.MaxLength != nil && *meta.MaxLength > 0:
		return fmt.Sprintf("%s(%d)", name, *meta.MaxLength)
	case meta.Precision != nil:
		return withPrecision(name, meta.Precision, meta.Scale)
	}
	return name
}
