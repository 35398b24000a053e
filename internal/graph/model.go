package graph

import (
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/registry"
)

// Port — порт экземпляра узла.
type Port struct {
	Name      string           `json:"name"`
	Type      domain.ValueType `json:"type"`
	Direction domain.Direction `json:"direction"`
	Required  bool             `json:"required,omitempty"`
	Error     bool             `json:"error,omitempty"`
}

// Node — экземпляр узла в графе.
//
// Узел не ссылается на граф: связи ищутся через индекс графа по ID.
// Набор портов фиксируется при добавлении узла (включая динамические
// выходы Condition и Start) и не меняется до его удаления.
type Node struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Inputs     []Port         `json:"inputs"`
	Outputs    []Port         `json:"outputs"`

	spec *registry.NodeType
}

// Spec возвращает зарегистрированный тип узла.
func (n *Node) Spec() *registry.NodeType {
	return n.spec
}

// Input возвращает входной порт по имени.
func (n *Node) Input(name string) (Port, bool) {
	return findPort(n.Inputs, name)
}

// Output возвращает выходной порт по имени.
func (n *Node) Output(name string) (Port, bool) {
	return findPort(n.Outputs, name)
}

// ErrorPort возвращает имя error-выхода узла ("" если его нет).
func (n *Node) ErrorPort() string {
	for _, p := range n.Outputs {
		if p.Error {
			return p.Name
		}
	}
	return ""
}

func (n *Node) clone() *Node {
	cp := *n
	cp.Properties = copyProperties(n.Properties)
	cp.Inputs = append([]Port(nil), n.Inputs...)
	cp.Outputs = append([]Port(nil), n.Outputs...)
	return &cp
}

func findPort(ports []Port, name string) (Port, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// Link — направленная связь output-порт → input-порт.
type Link struct {
	ID       string           `json:"id"`
	From     string           `json:"from"`
	FromPort string           `json:"from_port"`
	To       string           `json:"to"`
	ToPort   string           `json:"to_port"`
	Type     domain.ValueType `json:"type"`

	// FromError — связь выходит из error-порта источника.
	FromError bool `json:"from_error,omitempty"`
}

// Activating — связь управляет активацией получателя:
// control-связи и связи из error-порта.
func (l *Link) Activating() bool {
	return l.Type.IsControl() || l.FromError
}

// copyProperties выполняет глубокое копирование свойств.
func copyProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyProperties(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
