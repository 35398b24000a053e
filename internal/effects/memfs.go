package effects

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
)

// Op — файловая операция (для инъекции ошибок в MemFS).
type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpAppend Op = "append"
	OpDelete Op = "delete"
)

// MemFS — in-memory FileSystem для тестов.
//
// Хранит файлы в map path → content. Каталоги задаются через Mkdir,
// ошибки ОС эмулируются через Fail. Потокобезопасна.
type MemFS struct {
	mu     sync.RWMutex
	files  map[string]string
	dirs   map[string]bool
	faults map[Op]map[string]error
}

// NewMemFS создаёт MemFS с начальным набором файлов.
func NewMemFS(files map[string]string) *MemFS {
	m := &MemFS{
		files:  make(map[string]string, len(files)),
		dirs:   make(map[string]bool),
		faults: make(map[Op]map[string]error),
	}
	for p, content := range files {
		m.files[clean(p)] = content
	}
	return m
}

// Mkdir регистрирует каталог.
func (m *MemFS) Mkdir(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[clean(p)] = true
}

// Fail заставляет операцию op над путём p возвращать err
// (например ErrPermissionDenied или ErrNoSpace).
func (m *MemFS) Fail(op Op, p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.faults[op] == nil {
		m.faults[op] = make(map[string]error)
	}
	m.faults[op][clean(p)] = err
}

// Get возвращает содержимое файла без проверок.
func (m *MemFS) Get(p string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[clean(p)]
	return content, ok
}

// Files возвращает копию всех файлов.
func (m *MemFS) Files() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.files))
	for p, c := range m.files {
		out[p] = c
	}
	return out
}

// Paths возвращает отсортированный список путей.
func (m *MemFS) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Read реализует FileSystem.
func (m *MemFS) Read(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = clean(p)
	if err := m.check(OpRead, p); err != nil {
		return "", err
	}
	content, ok := m.files[p]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return content, nil
}

// Write реализует FileSystem.
func (m *MemFS) Write(ctx context.Context, p, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if err := m.check(OpWrite, p); err != nil {
		return err
	}
	m.files[p] = content
	return nil
}

// Append реализует FileSystem.
func (m *MemFS) Append(ctx context.Context, p, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if err := m.check(OpAppend, p); err != nil {
		return err
	}
	m.files[p] += content
	return nil
}

// Delete реализует FileSystem.
func (m *MemFS) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if err := m.check(OpDelete, p); err != nil {
		return err
	}
	if _, ok := m.files[p]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	delete(m.files, p)
	return nil
}

// check применяет инъекции ошибок и проверку на каталог.
// Вызывается под блокировкой.
func (m *MemFS) check(op Op, p string) error {
	if err := m.faults[op][p]; err != nil {
		return fmt.Errorf("%w: %s", err, p)
	}
	if m.dirs[p] {
		return fmt.Errorf("%w: %s", ErrIsADirectory, p)
	}
	return nil
}

func clean(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean("/" + p)
}
