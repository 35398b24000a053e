package graph

import (
	"errors"

	"github.com/shaiso/Nodeflow/internal/registry"
)

// Структурные ошибки редактирования графа.
var (
	// ErrUnknownType — тип узла не зарегистрирован.
	ErrUnknownType = registry.ErrUnknownType

	// ErrInvalidProperty — отсутствует обязательное свойство или неверный тип значения.
	ErrInvalidProperty = errors.New("invalid property")

	// ErrPortNotFound — у узла нет порта с таким именем и направлением.
	ErrPortNotFound = errors.New("port not found")

	// ErrPortTypeMismatch — типы портов связи не совпадают.
	ErrPortTypeMismatch = errors.New("port type mismatch")

	// ErrInputAlreadyBound — входной порт уже имеет входящую связь.
	ErrInputAlreadyBound = errors.New("input already bound")

	// ErrCycleDetected — связь создаёт цикл.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrNodeNotFound — узел не найден.
	ErrNodeNotFound = errors.New("node not found")

	// ErrLinkNotFound — связь не найдена.
	ErrLinkNotFound = errors.New("link not found")

	// ErrDuplicateNode — узел с таким ID уже существует.
	ErrDuplicateNode = errors.New("duplicate node id")
)

// ErrGraphLocked — граф изменяется или запускается во время активного run.
var ErrGraphLocked = errors.New("graph locked during run")

// EditError — ошибка правки графа с контекстом.
type EditError struct {
	NodeID  string // узел, к которому относится ошибка
	Port    string // порт или свойство
	Message string
	Err     error // базовая ошибка
}

// Error реализует интерфейс error.
func (e *EditError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *EditError) Unwrap() error {
	return e.Err
}

func editError(nodeID, port, message string, err error) *EditError {
	return &EditError{
		NodeID:  nodeID,
		Port:    port,
		Message: message,
		Err:     err,
	}
}
