// Package effects изолирует побочные эффекты узлов графа.
//
// Executor'ы I/O-узлов (file/ReadFile, file/WriteFile, file/AppendFile,
// file/DeleteFile, net/HttpRequest) никогда не обращаются к файловой системе
// или сети напрямую — только через capability-интерфейсы этого пакета:
//
//	type FileSystem interface {
//	    Read(ctx, path) (string, error)
//	    Write(ctx, path, content) error
//	    Append(ctx, path, content) error
//	    Delete(ctx, path) error
//	}
//
// Реализации:
//   - OSFileSystem — реальная файловая система (опционально внутри Root)
//   - MemFS        — in-memory map для тестов движка
//
// Ошибки нормализуются к ErrNotFound, ErrPermissionDenied, ErrIsADirectory
// и ErrNoSpace, поэтому поведение движка не зависит от реализации.
package effects
