package datasource

import (
	"fmt"
	"strconv"
)

// DSNKey is the config map key holding a complete driver connection string.
// When present it takes the place of the discrete host/user/database keys.
const DSNKey = "dsn"

// Options is the untyped connector config as decoded from YAML or JSON.
type Options map[string]any

// String returns the first non-empty string among keys.
func (o Options) String(keys ...string) string {
	for _, k := range keys {
		if s, ok := o[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Require is String that fails when none of keys is set.
// The error names the first key.
func (o Options) Require(keys ...string) (string, error) {
	if s := o.String(keys...); s != "" {
		return s, nil
	}
	return "", fmt.Errorf("%s is required", keys[0])
}

// Int reads an integer option. JSON numbers decode as float64 and YAML
// numbers as int; numeric strings are accepted too.
func (o Options) Int(key string) (int, bool) {
	switch v := o[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

// Bool reads a boolean option given as a bool or a "true"/"false" string.
func (o Options) Bool(key string) (bool, bool) {
	switch v := o[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	return false, false
}

// Has reports whether key is present with a non-nil value.
func (o Options) Has(key string) bool {
	return o[key] != nil
}
