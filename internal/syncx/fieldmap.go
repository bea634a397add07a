package syncx

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// GetString safely extracts a string value from a map.
func GetString(m map[string]any, k string) (string, bool) {
	if v, ok := m[k]; ok {
		if s, ok2 := v.(string); ok2 {
			return s, true
		}
	}
	return "", false
}

// GetMap safely extracts a nested map from a map. Handles both
// map[string]any and map[string]interface{}.
func GetMap(m map[string]any, k string) (map[string]any, bool) {
	if v, ok := m[k]; ok {
		if mm, ok2 := v.(map[string]any); ok2 {
			return mm, true
		}
		if mm, ok2 := v.(map[string]interface{}); ok2 {
			converted := make(map[string]any, len(mm))
			for key, val := range mm {
				converted[key] = val
			}
			return converted, true
		}
	}
	return nil, false
}

// ParseTimeToMs converts RFC3339 or numeric-millisecond strings to Unix
// milliseconds.
func ParseTimeToMs(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().UnixMilli(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().UnixMilli(), true
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, true
	}
	return 0, false
}

// CamelToSnake converts a camelCase wire field name ("recordId") to the
// snake_case form local stores use ("record_id"), per spec §9's field
// mapping note on the pull boundary.
func CamelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SnakeToCamel converts a local-store snake_case field name ("server_id")
// back to the wire's camelCase form ("serverId").
func SnakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// MapKeys applies f to every key of m, returning a new map. Used to convert
// a whole server record (camelCase) into local-store field names
// (snake_case) or back.
func MapKeys(m map[string]any, f func(string) string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[f(k)] = v
	}
	return out
}
