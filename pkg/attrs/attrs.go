// Package attrs extracts typed values from slog-style variadic key-value
// attribute slices. Services pass attributes through to audit logging and
// pick out the fields the audit record needs.
package attrs

import "fmt"

// ExtractString extracts a string value from a key-value attribute slice.
// The slice should be formatted as [key1, value1, key2, value2, ...].
// Returns empty string if the key is not found or the value is not a string.
func ExtractString(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if k == key {
			if v, ok := attrs[i+1].(string); ok {
				return v
			}
		}
	}
	return ""
}

// ExtractStringer extracts a value implementing fmt.Stringer and renders it.
// Falls back to ExtractString when the value is already a plain string.
func ExtractStringer(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		switch v := attrs[i+1].(type) {
		case fmt.Stringer:
			return v.String()
		case string:
			return v
		}
	}
	return ""
}
