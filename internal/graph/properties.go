package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/registry"
)

// checkProperties проверяет свойства по схеме типа.
// Свойства вне схемы допускаются (например, timeout_sec).
func checkProperties(nodeID string, spec *registry.NodeType, props map[string]any) error {
	for _, p := range spec.Properties {
		v, ok := props[p.Name]
		if !ok || isBlank(v) {
			if p.Required {
				return editError(nodeID, p.Name,
					fmt.Sprintf("%s requires property %q", spec.Name, p.Name), ErrInvalidProperty)
			}
			continue
		}
		if p.Type != "" && !matchesType(p.Type, v) {
			return editError(nodeID, p.Name,
				fmt.Sprintf("property %q must be %s, got %T", p.Name, p.Type, v), ErrInvalidProperty)
		}
	}

	if spec.ValidateProps != nil {
		if err := spec.ValidateProps(props); err != nil {
			return editError(nodeID, "", err.Error(), ErrInvalidProperty)
		}
	}
	return nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// matchesType проверяет значение свойства. Числовые и булевы свойства
// могут быть заданы шаблоном — он рендерится движком перед выполнением.
func matchesType(t domain.PropertyType, v any) bool {
	switch t {
	case domain.PropString:
		_, ok := v.(string)
		return ok
	case domain.PropNumber:
		switch v.(type) {
		case float64, float32, int, int64, json.Number:
			return true
		}
		return isTemplate(v)
	case domain.PropBoolean:
		if _, ok := v.(bool); ok {
			return true
		}
		return isTemplate(v)
	case domain.PropList:
		switch v.(type) {
		case []any, []string, []map[string]any:
			return true
		}
		return false
	case domain.PropMap:
		switch v.(type) {
		case map[string]any, map[string]string:
			return true
		}
		return false
	default:
		return true
	}
}

func isTemplate(v any) bool {
	s, ok := v.(string)
	return ok && strings.Contains(s, "{{")
}
