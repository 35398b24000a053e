package nodes

import (
	"context"
	"fmt"
	"sort"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/registry"
)

// Свойства Start.
const (
	PropInputs   = "inputs"
	PropSchedule = "schedule"
)

// StartType — точка входа workflow.
//
// Свойство inputs объявляет входные параметры run и их значения по
// умолчанию; для каждого параметра создаётся string-выход с тем же именем.
// Свойство schedule — cron-выражение для периодического запуска.
//
//	{"inputs": {"file": "/a.txt"}, "schedule": "*/5 * * * *"}
func StartType() registry.NodeType {
	return registry.NodeType{
		Name:    domain.NodeTypeStart,
		Title:   "Start",
		Class:   domain.ClassPure,
		Outputs: []registry.PortSpec{nextPort},
		Properties: []registry.PropertySpec{
			{Name: PropInputs, Type: domain.PropMap},
			{Name: PropSchedule, Type: domain.PropString},
		},
		DynamicOutputs: startOutputs,
		ValidateProps:  validateStart,
		Executor:       registry.ExecutorFunc(executeStart),
	}
}

// InputNames возвращает имена объявленных входных параметров в порядке сортировки.
func InputNames(props map[string]any) []string {
	inputs := registry.GetMap(props, PropInputs)
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func startOutputs(props map[string]any) ([]registry.PortSpec, error) {
	var ports []registry.PortSpec
	for _, name := range InputNames(props) {
		if name == PortNext {
			return nil, fmt.Errorf("%w: input name %q is reserved", ErrInvalidConfig, name)
		}
		ports = append(ports, registry.PortSpec{Name: name, Type: domain.TypeString})
	}
	return ports, nil
}

func validateStart(props map[string]any) error {
	expr := registry.GetString(props, PropSchedule)
	if expr == "" {
		return nil
	}
	if _, err := ParseSchedule(expr); err != nil {
		return err
	}
	return nil
}

// ParseSchedule разбирает cron-выражение свойства schedule
// (5 полей или дескриптор вида @daily).
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid schedule %q: %v", ErrInvalidConfig, expr, err)
	}
	return sched, nil
}

// executeStart выдаёт значения входных параметров: переданные в run
// или значения по умолчанию из свойства inputs.
func executeStart(ctx context.Context, req *registry.Request) (*registry.Result, error) {
	defaults := registry.GetMap(req.Properties, PropInputs)
	outputs := make(map[string]any, len(defaults))

	for _, name := range InputNames(req.Properties) {
		if v, ok := req.RunInputs[name]; ok {
			outputs[name] = v
			continue
		}
		outputs[name] = defaults[name]
	}
	return registry.NewResult(outputs), nil
}

// EndType — завершение ветки workflow.
func EndType() registry.NodeType {
	return registry.NodeType{
		Name:   domain.NodeTypeEnd,
		Title:  "End",
		Class:  domain.ClassPure,
		Inputs: []registry.PortSpec{inPort},
		Executor: registry.ExecutorFunc(func(ctx context.Context, req *registry.Request) (*registry.Result, error) {
			return registry.NewResult(nil), nil
		}),
	}
}
