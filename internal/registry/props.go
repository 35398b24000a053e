package registry

import (
	"fmt"
	"strconv"
)

// GetString извлекает строковое значение.
// Числа и bool форматируются, отсутствующее значение — "".
func GetString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprint(v)
	}
}

// GetInt извлекает числовое значение.
func GetInt(m map[string]any, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case string:
			if i, err := strconv.Atoi(n); err == nil {
				return i
			}
		}
	}
	return 0
}

// GetBool извлекает булево значение.
func GetBool(m map[string]any, key string, defaultVal bool) bool {
	if v, ok := m[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
	}
	return defaultVal
}

// GetMap извлекает map из свойств.
func GetMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key]; ok {
		if mm, ok := v.(map[string]any); ok {
			return mm
		}
	}
	return nil
}

// GetMapString извлекает map[string]string из свойств.
func GetMapString(m map[string]any, key string) map[string]string {
	if v, ok := m[key]; ok {
		switch mm := v.(type) {
		case map[string]string:
			return mm
		case map[string]any:
			result := make(map[string]string, len(mm))
			for k, val := range mm {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// GetList извлекает список из свойств.
func GetList(m map[string]any, key string) []any {
	if v, ok := m[key]; ok {
		if l, ok := v.([]any); ok {
			return l
		}
	}
	return nil
}
