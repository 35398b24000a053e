package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shaiso/Nodeflow/internal/graph"
)

// Фатальные ошибки run: возвращаются из Run, отчёт не создаётся.
var (
	// ErrGraphLocked — граф уже выполняется.
	ErrGraphLocked = graph.ErrGraphLocked

	// ErrInvalidGraph — граф не проходит структурную проверку.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrInvariant — нарушен внутренний инвариант движка.
	ErrInvariant = errors.New("engine invariant violated")
)

// Ошибки узлов: записываются в отчёт, run продолжается.
var (
	// ErrUnresolvedInput — у входа нет значения к моменту запуска узла.
	ErrUnresolvedInput = errors.New("unresolved input")

	// ErrTypeCoercion — значение нельзя привести к типу порта.
	ErrTypeCoercion = errors.New("type coercion failed")

	// ErrExecutorPanic — executor узла запаниковал.
	ErrExecutorPanic = errors.New("executor panic")

	// ErrNodeTimeout — executor не уложился в таймаут узла.
	ErrNodeTimeout = errors.New("node timed out")
)

// InvalidGraphError — граф с нарушениями структуры.
type InvalidGraphError struct {
	Violations []graph.Violation
}

// Error реализует интерфейс error.
func (e *InvalidGraphError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}
	return fmt.Sprintf("%s: %s", ErrInvalidGraph, strings.Join(msgs, "; "))
}

// Unwrap возвращает ErrInvalidGraph.
func (e *InvalidGraphError) Unwrap() error {
	return ErrInvalidGraph
}
