package datasource

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource/typefmt"
)

// Row is a single catalog result row keyed by lower-cased column alias.
// Drivers disagree on Go types (MySQL returns []byte for text, pgx returns
// int16/int32/uint32 for small integers), so accessors coerce.
type Row map[string]any

func (r Row) value(key string) any {
	if v, ok := r[key]; ok {
		return v
	}
	return r[strings.ToLower(key)]
}

// String returns the value as a string, or "" when null.
func (r Row) String(key string) string {
	if s := r.NullString(key); s != nil {
		return *s
	}
	return ""
}

// NullString returns the value as a string pointer, nil when null.
func (r Row) NullString(key string) *string {
	switch v := r.value(key).(type) {
	case nil:
		return nil
	case string:
		return &v
	case []byte:
		s := string(v)
		return &s
	case fmt.Stringer:
		s := v.String()
		return &s
	default:
		s := fmt.Sprint(v)
		return &s
	}
}

// NullInt64 returns the value as an int64 pointer, nil when null or unparsable.
func (r Row) NullInt64(key string) *int64 {
	var n int64
	switch v := r.value(key).(type) {
	case nil:
		return nil
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case uint64:
		n = int64(v)
	case float32:
		n = int64(v)
	case float64:
		n = int64(v)
	case bool:
		if v {
			n = 1
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	case []byte:
		parsed, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

// Int64 returns the value as an int64, 0 when null.
func (r Row) Int64(key string) int64 {
	if n := r.NullInt64(key); n != nil {
		return *n
	}
	return 0
}

// Bool interprets bit, integer, and textual flags ("YES", "t", "1").
func (r Row) Bool(key string) bool {
	switch v := r.value(key).(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return parseFlag(v)
	case []byte:
		return parseFlag(string(v))
	default:
		if n := r.NullInt64(key); n != nil {
			return *n != 0
		}
		return false
	}
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on", "o", "enabled":
		return true
	}
	return false
}

// Time returns the value as a time pointer, nil when null or unparsable.
func (r Row) Time(key string) *time.Time {
	switch v := r.value(key).(type) {
	case time.Time:
		return &v
	case *time.Time:
		return v
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) *time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// TypeMeta reads type metadata from the conventional aliases
// <prefix>type_name, <prefix>max_length, <prefix>numeric_precision,
// <prefix>numeric_scale and <prefix>full_type.
func (r Row) TypeMeta(prefix string) typefmt.TypeMeta {
	return typefmt.TypeMeta{
		Name:      r.String(prefix + "type_name"),
		MaxLength: r.NullInt64(prefix + "max_length"),
		Precision: r.NullInt64(prefix + "numeric_precision"),
		Scale:     r.NullInt64(prefix + "numeric_scale"),
		Full:      r.String(prefix + "full_type"),
	}
}

// SplitList splits a comma-joined aggregate into trimmed, non-empty parts.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
