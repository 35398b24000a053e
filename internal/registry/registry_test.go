package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Nodeflow/internal/domain"
)

func noop() Executor {
	return ExecutorFunc(func(ctx context.Context, req *Request) (*Result, error) {
		return NewResult(nil), nil
	})
}

func TestRegistry(t *testing.T) {
	r := New()

	// Пустой реестр
	if r.Count() != 0 {
		t.Errorf("expected empty registry")
	}

	err := r.Register(NodeType{
		Name:     "core/Log",
		Inputs:   []PortSpec{{Name: "in", Type: domain.TypeControl}, {Name: "message", Type: domain.TypeString}},
		Outputs:  []PortSpec{{Name: "next", Type: domain.TypeControl}},
		Executor: noop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 type, got %d", r.Count())
	}

	// Получение
	typ, err := r.Lookup("core/Log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ.Class != domain.ClassPure {
		t.Errorf("expected default class pure, got %s", typ.Class)
	}
	if _, ok := typ.Input("message"); !ok {
		t.Error("expected message input")
	}

	// Несуществующий тип
	_, err = r.Lookup("core/Unknown")
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}

	// Повторная регистрация
	err = r.Register(NodeType{Name: "core/Log", Executor: noop()})
	if !errors.Is(err, ErrDuplicateType) {
		t.Errorf("expected ErrDuplicateType, got %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("duplicate registration must not change registry")
	}
}

func TestRegister_InvalidSignature(t *testing.T) {
	tests := []struct {
		name string
		typ  NodeType
	}{
		{"empty name", NodeType{Executor: noop()}},
		{"nil executor", NodeType{Name: "x/A"}},
		{"duplicate input", NodeType{
			Name:     "x/A",
			Inputs:   []PortSpec{{Name: "in", Type: domain.TypeControl}, {Name: "in", Type: domain.TypeString}},
			Executor: noop(),
		}},
		{"duplicate output", NodeType{
			Name:     "x/A",
			Outputs:  []PortSpec{{Name: "next", Type: domain.TypeControl}, {Name: "next", Type: domain.TypeControl}},
			Executor: noop(),
		}},
		{"unknown port type", NodeType{
			Name:     "x/A",
			Inputs:   []PortSpec{{Name: "in", Type: "blob"}},
			Executor: noop(),
		}},
		{"error port not string", NodeType{
			Name:     "x/A",
			Outputs:  []PortSpec{{Name: "error", Type: domain.TypeNumber, Error: true}},
			Executor: noop(),
		}},
		{"error port on input", NodeType{
			Name:     "x/A",
			Inputs:   []PortSpec{{Name: "error", Type: domain.TypeString, Error: true}},
			Executor: noop(),
		}},
		{"duplicate property", NodeType{
			Name:       "x/A",
			Properties: []PropertySpec{{Name: "path"}, {Name: "path"}},
			Executor:   noop(),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			err := r.Register(tt.typ)
			if !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("expected ErrInvalidSignature, got %v", err)
			}
			if r.Count() != 0 {
				t.Error("invalid type must not be registered")
			}
		})
	}
}

func TestRegister_SameNameAcrossDirections(t *testing.T) {
	r := New()
	// Одно имя во входах и выходах допустимо
	err := r.Register(NodeType{
		Name:     "core/Log",
		Inputs:   []PortSpec{{Name: "message", Type: domain.TypeString}},
		Outputs:  []PortSpec{{Name: "message", Type: domain.TypeString}},
		Executor: noop(),
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegistry_TypesSorted(t *testing.T) {
	r := New()
	r.MustRegister(NodeType{Name: "file/ReadFile", Executor: noop()})
	r.MustRegister(NodeType{Name: "core/End", Executor: noop()})
	r.MustRegister(NodeType{Name: "core/Start", Executor: noop()})

	types := r.Types()
	expected := []string{"core/End", "core/Start", "file/ReadFile"}
	if len(types) != len(expected) {
		t.Fatalf("expected %d types, got %d", len(expected), len(types))
	}
	for i := range expected {
		if types[i] != expected[i] {
			t.Errorf("types[%d]: expected %s, got %s", i, expected[i], types[i])
		}
	}

	list := r.List()
	if list[0].Name != "core/End" {
		t.Errorf("expected first listed type core/End, got %s", list[0].Name)
	}
}

func TestMustRegister_PanicsOnError(t *testing.T) {
	r := New()
	r.MustRegister(NodeType{Name: "core/Start", Executor: noop()})

	defer func() {
		v := recover()
		err, ok := v.(error)
		if !ok || !errors.Is(err, ErrDuplicateType) {
			t.Errorf("expected panic with ErrDuplicateType, got %v", v)
		}
		if r.Count() != 1 {
			t.Errorf("expected 1 type after failed registration, got %d", r.Count())
		}
	}()
	r.MustRegister(NodeType{Name: "core/Start", Executor: noop()})
}

func TestRegistry_SignatureIsCopied(t *testing.T) {
	r := New()
	inputs := []PortSpec{{Name: "in", Type: domain.TypeControl}}
	r.MustRegister(NodeType{Name: "x/A", Inputs: inputs, Executor: noop()})

	inputs[0].Name = "changed"

	typ, _ := r.Lookup("x/A")
	if typ.Inputs[0].Name != "in" {
		t.Error("registered signature must not change with caller's slice")
	}
}

func TestGetHelpers(t *testing.T) {
	m := map[string]any{
		"s":     "hello",
		"n":     float64(42),
		"i":     7,
		"b":     true,
		"bs":    "false",
		"m":     map[string]any{"k": "v", "n": 1},
		"l":     []any{"a", "b"},
		"float": 1.5,
	}

	if GetString(m, "s") != "hello" {
		t.Error("GetString s")
	}
	if GetString(m, "n") != "42" {
		t.Errorf("GetString n: %q", GetString(m, "n"))
	}
	if GetString(m, "float") != "1.5" {
		t.Errorf("GetString float: %q", GetString(m, "float"))
	}
	if GetString(m, "missing") != "" {
		t.Error("GetString missing")
	}
	if GetInt(m, "n") != 42 || GetInt(m, "i") != 7 {
		t.Error("GetInt")
	}
	if !GetBool(m, "b", false) || GetBool(m, "bs", true) {
		t.Error("GetBool")
	}
	if !GetBool(m, "missing", true) {
		t.Error("GetBool default")
	}
	if ms := GetMapString(m, "m"); len(ms) != 1 || ms["k"] != "v" {
		t.Errorf("GetMapString: %v", ms)
	}
	if l := GetList(m, "l"); len(l) != 2 {
		t.Errorf("GetList: %v", l)
	}
	if GetMap(m, "s") != nil {
		t.Error("GetMap on string should be nil")
	}
}
