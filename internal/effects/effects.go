package effects

import (
	"context"
	"net/http"
)

// FileSystem — capability файловых операций.
//
// Содержимое файлов — строки: узлы графа оперируют только string-портами.
type FileSystem interface {
	// Read возвращает содержимое файла.
	// Ошибки: ErrNotFound, ErrPermissionDenied, ErrIsADirectory.
	Read(ctx context.Context, path string) (string, error)

	// Write создаёт или перезаписывает файл.
	// Ошибки: ErrPermissionDenied, ErrNoSpace, ErrIsADirectory.
	Write(ctx context.Context, path, content string) error

	// Append дописывает content в конец файла, создавая его при необходимости.
	// Ошибки: ErrPermissionDenied, ErrNoSpace, ErrIsADirectory.
	Append(ctx context.Context, path, content string) error

	// Delete удаляет файл.
	// Ошибки: ErrNotFound, ErrPermissionDenied, ErrIsADirectory.
	Delete(ctx context.Context, path string) error
}

// HTTPClient — capability сетевых запросов. *http.Client её реализует.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Effects — набор capability, передаваемый executor'ам.
// Nil-поле означает, что capability недоступна в этом run.
type Effects struct {
	FS   FileSystem
	HTTP HTTPClient
}

// FileSystem возвращает FS или ErrNoCapability.
func (e *Effects) FileSystem() (FileSystem, error) {
	if e == nil || e.FS == nil {
		return nil, ErrNoCapability
	}
	return e.FS, nil
}

// HTTPClient возвращает HTTP или ErrNoCapability.
func (e *Effects) HTTPClient() (HTTPClient, error) {
	if e == nil || e.HTTP == nil {
		return nil, ErrNoCapability
	}
	return e.HTTP, nil
}
