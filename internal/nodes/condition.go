package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/expr"
	"github.com/shaiso/Nodeflow/internal/registry"
)

// Свойства Condition.
const (
	PropConditions = "conditions"

	// ElseExpr — условие, которое выполняется всегда.
	ElseExpr = "else"
)

// Condition — одна ветка узла Condition.
type Condition struct {
	Name string
	Expr string
}

// ConditionType — ветвление.
//
// Для каждого условия создаётся control-выход. Условия проверяются по
// порядку, срабатывает первое истинное; "else" истинно всегда. Если ни одно
// условие не выполнилось, узел падает и активирует error-выход.
//
//	{"conditions": [
//	    {"name": "big", "expr": "gt (num .In.value) 100.0"},
//	    {"name": "small", "expr": "else"}
//	]}
//
// Строковый элемент списка — выражение ветки "condition N".
func ConditionType() registry.NodeType {
	return registry.NodeType{
		Name:  domain.NodeTypeCondition,
		Title: "Condition",
		Class: domain.ClassPure,
		Inputs: []registry.PortSpec{
			inPort,
			{Name: "value", Type: domain.TypeString},
		},
		Outputs: []registry.PortSpec{errorPort},
		Properties: []registry.PropertySpec{
			{Name: PropConditions, Type: domain.PropList, Required: true, Verbatim: true},
		},
		Branching: true,
		DynamicOutputs: func(props map[string]any) ([]registry.PortSpec, error) {
			conds, err := ParseConditions(props)
			if err != nil {
				return nil, err
			}
			ports := make([]registry.PortSpec, 0, len(conds))
			for _, c := range conds {
				ports = append(ports, registry.PortSpec{Name: c.Name, Type: domain.TypeControl})
			}
			return ports, nil
		},
		Executor: registry.ExecutorFunc(executeCondition),
	}
}

// ParseConditions разбирает свойство conditions.
func ParseConditions(props map[string]any) ([]Condition, error) {
	items := registry.GetList(props, PropConditions)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s: at least one condition required", ErrInvalidConfig, domain.NodeTypeCondition)
	}

	conds := make([]Condition, 0, len(items))
	seen := make(map[string]bool, len(items))

	for i, item := range items {
		c := Condition{Name: fmt.Sprintf("condition %d", i+1)}

		switch v := item.(type) {
		case string:
			c.Expr = v
		case map[string]any:
			if name := registry.GetString(v, "name"); name != "" {
				c.Name = name
			}
			c.Expr = registry.GetString(v, "expr")
		default:
			return nil, fmt.Errorf("%w: conditions[%d]: expected string or object, got %T", ErrInvalidConfig, i, item)
		}

		if seen[c.Name] {
			return nil, fmt.Errorf("%w: duplicate condition name %q", ErrInvalidConfig, c.Name)
		}
		seen[c.Name] = true
		conds = append(conds, c)
	}
	return conds, nil
}

func executeCondition(ctx context.Context, req *registry.Request) (*registry.Result, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	conds, err := ParseConditions(req.Properties)
	if err != nil {
		return nil, err
	}

	scope := req.Scope
	if scope == nil {
		scope = expr.NewContext(nil).WithIn(req.Inputs)
	}

	for _, c := range conds {
		if strings.TrimSpace(c.Expr) == ElseExpr {
			return registry.BranchResult(c.Name, nil), nil
		}

		ok, err := expr.RenderCondition(c.Expr, scope)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", c.Name, err)
		}
		if ok {
			return registry.BranchResult(c.Name, nil), nil
		}
	}

	return nil, fmt.Errorf("%w: evaluated %d conditions", ErrNoConditionMatched, len(conds))
}
