package effects

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// OSFileSystem — FileSystem поверх os.
//
// Если Root задан, все пути интерпретируются относительно Root
// и не могут выйти за его пределы.
type OSFileSystem struct {
	Root string
}

// NewOSFileSystem создаёт OSFileSystem с корнем root ("" — без ограничений).
func NewOSFileSystem(root string) *OSFileSystem {
	return &OSFileSystem{Root: root}
}

// Read читает файл целиком.
func (f *OSFileSystem) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	if err := rejectDir(p); err != nil {
		return "", err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return "", mapOSError(path, err)
	}
	return string(data), nil
}

// Write перезаписывает файл.
func (f *OSFileSystem) Write(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := rejectDir(p); err != nil {
		return err
	}

	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return mapOSError(path, err)
	}
	return nil
}

// Append дописывает в файл, создавая его при необходимости.
func (f *OSFileSystem) Append(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := rejectDir(p); err != nil {
		return err
	}

	file, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return mapOSError(path, err)
	}
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		return mapOSError(path, err)
	}
	if err := file.Close(); err != nil {
		return mapOSError(path, err)
	}
	return nil
}

// Delete удаляет файл. Каталоги не удаляются.
func (f *OSFileSystem) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := rejectDir(p); err != nil {
		return err
	}

	if err := os.Remove(p); err != nil {
		return mapOSError(path, err)
	}
	return nil
}

// resolve переводит путь графа в путь ОС.
func (f *OSFileSystem) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrNotFound)
	}
	if f.Root == "" {
		return filepath.Clean(path), nil
	}

	// Clean от "/" не даёт ".." подняться выше корня
	rel := filepath.Clean(string(filepath.Separator) + path)
	full := filepath.Join(f.Root, rel)

	root := filepath.Clean(f.Root)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside of %s", ErrPermissionDenied, path, f.Root)
	}
	return full, nil
}

// rejectDir возвращает ErrIsADirectory, если p — существующий каталог.
func rejectDir(p string) error {
	info, err := os.Stat(p)
	if err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s", ErrIsADirectory, p)
	}
	return nil
}

// mapOSError приводит ошибку os к ошибкам пакета.
func mapOSError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	case errors.Is(err, syscall.EISDIR):
		return fmt.Errorf("%w: %s", ErrIsADirectory, path)
	case errors.Is(err, syscall.ENOSPC):
		return fmt.Errorf("%w: %s", ErrNoSpace, path)
	default:
		return fmt.Errorf("%s: %w", path, err)
	}
}
