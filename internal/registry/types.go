package registry

import (
	"context"
	"log/slog"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/effects"
	"github.com/shaiso/Nodeflow/internal/expr"
)

// PortSpec — объявление порта в сигнатуре типа.
type PortSpec struct {
	// Name — имя порта, уникальное в пределах направления.
	Name string `json:"name"`

	// Type — тип значения порта.
	Type domain.ValueType `json:"type"`

	// Required — входной порт должен быть связан или иметь
	// одноимённое свойство (для выходов не используется).
	Required bool `json:"required,omitempty"`

	// Error — выход "error ->": получает сообщение об ошибке узла,
	// связи из него активируют узлы-обработчики ошибок.
	Error bool `json:"error,omitempty"`
}

// PropertySpec — объявление свойства узла.
type PropertySpec struct {
	Name     string              `json:"name"`
	Type     domain.PropertyType `json:"type"`
	Required bool                `json:"required,omitempty"`

	// Verbatim — движок не рендерит значение как шаблон
	// (выражения Condition вычисляются самим executor'ом).
	Verbatim bool `json:"verbatim,omitempty"`
}

// Executor — контракт выполнения узла.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// ExecutorFunc — адаптер функции к Executor.
type ExecutorFunc func(ctx context.Context, req *Request) (*Result, error)

// Execute реализует Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}

// NodeType — зарегистрированный тип узла. Неизменяем после регистрации.
type NodeType struct {
	// Name — namespaced идентификатор, например "file/ReadFile".
	Name string

	// Title — отображаемое имя.
	Title string

	// Class — pure или io.
	Class domain.SideEffectClass

	// Inputs, Outputs — статическая сигнатура портов.
	Inputs  []PortSpec
	Outputs []PortSpec

	// Properties — схема свойств.
	Properties []PropertySpec

	// DynamicOutputs вычисляет дополнительные выходы экземпляра по его
	// свойствам. Вызывается один раз при добавлении узла в граф.
	DynamicOutputs func(props map[string]any) ([]PortSpec, error)

	// ValidateProps — дополнительная проверка свойств (nil — нет проверки).
	ValidateProps func(props map[string]any) error

	// Branching — executor выбирает ровно один control-выход через Result.Branch.
	Branching bool

	// Executor выполняет узел.
	Executor Executor
}

// Input возвращает статический входной порт по имени.
func (t *NodeType) Input(name string) (PortSpec, bool) {
	return findPort(t.Inputs, name)
}

// Output возвращает статический выходной порт по имени.
func (t *NodeType) Output(name string) (PortSpec, bool) {
	return findPort(t.Outputs, name)
}

// Property возвращает объявление свойства по имени.
func (t *NodeType) Property(name string) (PropertySpec, bool) {
	for _, p := range t.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertySpec{}, false
}

func findPort(ports []PortSpec, name string) (PortSpec, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

// Request — входные данные executor'а.
type Request struct {
	// NodeID — идентификатор экземпляра узла.
	NodeID string

	// Type — имя типа узла.
	Type string

	// Properties — свойства узла (строковые уже отрендерены).
	Properties map[string]any

	// Inputs — разрешённые значения входных data-портов:
	// значение связи, иначе одноимённое свойство.
	Inputs map[string]any

	// RunInputs — входные параметры run (используются Start).
	RunInputs map[string]any

	// Scope — контекст шаблонов с входами узла в In.
	Scope *expr.Context

	// Effects — capability для I/O.
	Effects *effects.Effects

	// Logger — логгер с run_id и node_id.
	Logger *slog.Logger
}

// Result — результат выполнения узла.
type Result struct {
	// Outputs — значения выходных data-портов.
	Outputs map[string]any

	// Branch — выбранный control-выход (только для Branching типов).
	Branch string
}

// NewResult создаёт Result с outputs.
func NewResult(outputs map[string]any) *Result {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	return &Result{Outputs: outputs}
}

// BranchResult создаёт Result с выбранной веткой.
func BranchResult(branch string, outputs map[string]any) *Result {
	r := NewResult(outputs)
	r.Branch = branch
	return r
}

// String возвращает строковое значение входа.
func (r *Request) String(name string) string {
	return GetString(r.Inputs, name)
}

// Has проверяет, разрешён ли вход.
func (r *Request) Has(name string) bool {
	_, ok := r.Inputs[name]
	return ok
}
