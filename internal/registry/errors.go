package registry

import "errors"

// Ошибки реестра.
var (
	// ErrDuplicateType — тип с таким именем уже зарегистрирован.
	ErrDuplicateType = errors.New("duplicate node type")

	// ErrUnknownType — тип не зарегистрирован.
	ErrUnknownType = errors.New("unknown node type")

	// ErrInvalidSignature — некорректная сигнатура портов типа.
	ErrInvalidSignature = errors.New("invalid port signature")
)
