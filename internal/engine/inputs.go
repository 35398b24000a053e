package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/expr"
	"github.com/shaiso/Nodeflow/internal/graph"
)

// linkedValues собирает значения входов, пришедшие по связям.
//
// Источник data-связи из обычного порта к этому моменту уже done
// (иначе узел пропущен). Вход из error-порта имеет значение только
// если источник упал.
func (x *Execution) linkedValues(node *graph.Node) (map[string]any, error) {
	values := make(map[string]any)

	for _, p := range node.Inputs {
		if p.Type.IsControl() {
			continue
		}
		l := x.snap.InputLink(node.ID, p.Name)
		if l == nil {
			continue
		}

		src := x.states[l.From]
		v, ok := src.outputs[l.FromPort]
		if !ok {
			if l.FromError {
				continue
			}
			return nil, fmt.Errorf("%w: input %q: %s.%s produced no value",
				ErrUnresolvedInput, p.Name, l.From, l.FromPort)
		}
		values[p.Name] = v
	}
	return values, nil
}

// renderProperties рендерит свойства узла шаблонами.
func renderProperties(node *graph.Node, scope *expr.Context) (map[string]any, error) {
	props := make(map[string]any, len(node.Properties))

	for k, v := range node.Properties {
		if ps, ok := node.Spec().Property(k); ok && ps.Verbatim {
			props[k] = v
			continue
		}
		rendered, err := expr.RenderValue(v, scope)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		props[k] = rendered
	}
	return props, nil
}

// resolveInputs: значение связи, иначе одноимённое свойство.
// Значения приводятся к типу порта.
func resolveInputs(node *graph.Node, linked, props map[string]any) (map[string]any, error) {
	inputs := make(map[string]any)

	for _, p := range node.Inputs {
		if p.Type.IsControl() {
			continue
		}

		v, ok := linked[p.Name]
		if !ok {
			if pv, has := props[p.Name]; has && pv != nil {
				v, ok = pv, true
			}
		}
		if !ok {
			if p.Required {
				return nil, fmt.Errorf("%w: required input %q has no value", ErrUnresolvedInput, p.Name)
			}
			continue
		}

		cv, err := coerce(v, p.Type)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", p.Name, err)
		}
		inputs[p.Name] = cv
	}
	return inputs, nil
}

// collectOutputs оставляет только объявленные data-выходы.
func collectOutputs(node *graph.Node, values map[string]any) (map[string]any, error) {
	outputs := make(map[string]any)

	for _, p := range node.Outputs {
		if p.Type.IsControl() || p.Error {
			continue
		}
		v, ok := values[p.Name]
		if !ok {
			continue
		}
		cv, err := coerce(v, p.Type)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", p.Name, err)
		}
		outputs[p.Name] = cv
	}
	return outputs, nil
}

// coerce приводит значение к типу порта.
func coerce(v any, t domain.ValueType) (any, error) {
	switch t {
	case domain.TypeString:
		switch val := v.(type) {
		case string:
			return val, nil
		case float64, float32, int, int64, bool, json.Number:
			return expr.ToString(val), nil
		case nil:
			return "", nil
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %T to string: %v", ErrTypeCoercion, v, err)
			}
			return string(b), nil
		}

	case domain.TypeNumber:
		switch val := v.(type) {
		case float64:
			return val, nil
		case float32, int, int64, json.Number:
			return expr.ToNumber(val), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a number", ErrTypeCoercion, val)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("%w: %T to number", ErrTypeCoercion, v)
		}

	case domain.TypeBoolean:
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a boolean", ErrTypeCoercion, val)
			}
			return b, nil
		case float64, float32, int, int64, json.Number:
			return expr.ToNumber(val) != 0, nil
		default:
			return nil, fmt.Errorf("%w: %T to boolean", ErrTypeCoercion, v)
		}
	}
	return v, nil
}
