package runner

import "errors"

var (
	// ErrRunNotFound — run нет в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotPending — run уже выполняется или завершён.
	ErrRunNotPending = errors.New("run is not pending")

	// ErrRunAlreadyActive — run выполняется этим runner'ом.
	ErrRunAlreadyActive = errors.New("run already active")

	// ErrRunRejected — граф run не удалось загрузить; run сохранён как FAILED.
	ErrRunRejected = errors.New("run rejected")
)
