package nodes

import "errors"

// Ошибки executor'ов встроенных узлов.
var (
	// ErrInvalidConfig — некорректные свойства узла.
	ErrInvalidConfig = errors.New("invalid node config")

	// ErrNoConditionMatched — ни одно условие Condition не выполнилось.
	ErrNoConditionMatched = errors.New("no condition matched")

	// ErrCancelled — выполнение узла прервано отменой контекста.
	ErrCancelled = errors.New("node cancelled")
)
