package effects

import "errors"

// Ошибки файловых операций.
var (
	// ErrNotFound — файл не существует.
	ErrNotFound = errors.New("file not found")

	// ErrPermissionDenied — нет прав на операцию (или путь вне Root).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrIsADirectory — путь указывает на каталог.
	ErrIsADirectory = errors.New("is a directory")

	// ErrNoSpace — на устройстве нет места.
	ErrNoSpace = errors.New("no space left on device")
)

// ErrNoCapability — узлу нужна capability, которая не передана в Effects.
var ErrNoCapability = errors.New("capability not available")
