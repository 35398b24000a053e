package effects

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemFS_ReadWriteAppendDelete(t *testing.T) {
	ctx := context.Background()
	fs := NewMemFS(map[string]string{"/a.txt": "hello"})

	content, err := fs.Read(ctx, "/a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "hello" {
		t.Errorf("expected hello, got %q", content)
	}

	if err := fs.Write(ctx, "/b.txt", "x"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.Append(ctx, "/b.txt", "y"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got, _ := fs.Get("/b.txt"); got != "xy" {
		t.Errorf("expected xy, got %q", got)
	}

	// Append создаёт файл
	if err := fs.Append(ctx, "/c.txt", "z"); err != nil {
		t.Fatalf("append new: %v", err)
	}
	if got, ok := fs.Get("c.txt"); !ok || got != "z" {
		t.Errorf("expected c.txt=z, got %q (%v)", got, ok)
	}

	if err := fs.Delete(ctx, "/a.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fs.Read(ctx, "/a.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemFS_Errors(t *testing.T) {
	ctx := context.Background()
	fs := NewMemFS(nil)
	fs.Mkdir("/dir")
	fs.Fail(OpWrite, "/full.txt", ErrNoSpace)
	fs.Fail(OpRead, "/secret", ErrPermissionDenied)

	if _, err := fs.Read(ctx, "/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := fs.Read(ctx, "/dir"); !errors.Is(err, ErrIsADirectory) {
		t.Errorf("expected ErrIsADirectory, got %v", err)
	}
	if err := fs.Write(ctx, "/full.txt", "data"); !errors.Is(err, ErrNoSpace) {
		t.Errorf("expected ErrNoSpace, got %v", err)
	}
	if _, err := fs.Read(ctx, "/secret"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
	if err := fs.Delete(ctx, "/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestMemFS_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := NewMemFS(map[string]string{"/a": "1"})
	if _, err := fs.Read(ctx, "/a"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOSFileSystem_RootedOperations(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs := NewOSFileSystem(root)

	if err := fs.Write(ctx, "/out.txt", "hello"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.Append(ctx, "/out.txt", " world"); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "out.txt"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("expected 'hello world', got %q", data)
	}

	content, err := fs.Read(ctx, "out.txt")
	if err != nil || content != "hello world" {
		t.Errorf("read: %q, %v", content, err)
	}

	// ".." не выводит за пределы корня
	if err := fs.Write(ctx, "../../escape.txt", "x"); err != nil {
		t.Fatalf("write with dots: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); err != nil {
		t.Errorf("expected file inside root: %v", err)
	}

	if err := fs.Delete(ctx, "/out.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fs.Read(ctx, "/out.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := fs.Delete(ctx, "/out.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestOSFileSystem_Directory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	fs := NewOSFileSystem(root)

	if _, err := fs.Read(ctx, "/sub"); !errors.Is(err, ErrIsADirectory) {
		t.Errorf("expected ErrIsADirectory, got %v", err)
	}
	if err := fs.Delete(ctx, "/sub"); !errors.Is(err, ErrIsADirectory) {
		t.Errorf("expected ErrIsADirectory on delete, got %v", err)
	}
}

func TestEffects_Capabilities(t *testing.T) {
	var e *Effects
	if _, err := e.FileSystem(); !errors.Is(err, ErrNoCapability) {
		t.Errorf("expected ErrNoCapability, got %v", err)
	}

	e = &Effects{FS: NewMemFS(nil)}
	if _, err := e.FileSystem(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := e.HTTPClient(); !errors.Is(err, ErrNoCapability) {
		t.Errorf("expected ErrNoCapability for http, got %v", err)
	}
}
