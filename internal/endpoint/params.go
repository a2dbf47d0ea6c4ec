package endpoint

import (
	"fmt"
	"strconv"
	"strings"
)

// FirstString returns the first non-empty string value found under keys.
func FirstString(params map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case fmt.Stringer:
			s = t.String()
		case int, int32, int64, float64, bool:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// FirstInt returns the first integer value found under keys, or defaultVal.
// Strings are parsed so form input such as "5432" is accepted.
func FirstInt(params map[string]any, defaultVal int, keys ...string) int {
	for _, key := range keys {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case int:
			return t
		case int64:
			return int(t)
		case float64:
			return int(t)
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				return i
			}
		}
	}
	return defaultVal
}

// FirstBool returns the first boolean value found under keys, or defaultVal.
func FirstBool(params map[string]any, defaultVal bool, keys ...string) bool {
	for _, key := range keys {
		if v, ok := params[key]; ok {
			switch t := v.(type) {
			case bool:
				return t
			case string:
				lowered := strings.ToLower(strings.TrimSpace(t))
				if lowered == "true" || lowered == "1" || lowered == "yes" {
					return true
				}
				if lowered == "false" || lowered == "0" || lowered == "no" {
					return false
				}
			}
		}
	}
	return defaultVal
}
