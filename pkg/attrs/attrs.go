package attrs

import "fmt"

// ExtractString returns the value stored under key in a slog-style
// [key1, value1, key2, value2, ...] slice. Strings are returned as-is and
// fmt.Stringer values (typed IDs) are rendered. Missing keys yield "".
func ExtractString(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		switch v := attrs[i+1].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
	}
	return ""
}

// ExtractInt64 returns the int64 stored under key, or 0.
func ExtractInt64(attrs []any, key string) int64 {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		switch v := attrs[i+1].(type) {
		case int64:
			return v
		case int:
			return int64(v)
		}
	}
	return 0
}
