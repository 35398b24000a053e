package nodes

import (
	"context"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/effects"
	"github.com/shaiso/Nodeflow/internal/registry"
)

// StatusOK — значение выхода status после успешной файловой операции.
const StatusOK = "ok"

var (
	pathInput    = registry.PortSpec{Name: "path", Type: domain.TypeString, Required: true}
	contentInput = registry.PortSpec{Name: "content", Type: domain.TypeString, Required: true}
	statusOutput = registry.PortSpec{Name: "status", Type: domain.TypeString}

	pathProperty    = registry.PropertySpec{Name: "path", Type: domain.PropString, Required: true}
	contentProperty = registry.PropertySpec{Name: "content", Type: domain.PropString}
)

// fileOp — операция над FileSystem, возвращающая выходы узла.
type fileOp func(ctx context.Context, fs effects.FileSystem, req *registry.Request) (map[string]any, error)

// fileExecutor получает FileSystem из Effects и выполняет op.
// Ошибки FileSystem возвращаются как есть: движок пишет их в error-выход.
func fileExecutor(op fileOp) registry.Executor {
	return registry.ExecutorFunc(func(ctx context.Context, req *registry.Request) (*registry.Result, error) {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		fs, err := req.Effects.FileSystem()
		if err != nil {
			return nil, err
		}
		outputs, err := op(ctx, fs, req)
		if err != nil {
			return nil, err
		}
		return registry.NewResult(outputs), nil
	})
}

// ReadFileType — чтение файла: "-> path", "content ->", "error ->".
func ReadFileType() registry.NodeType {
	return registry.NodeType{
		Name:       "file/ReadFile",
		Title:      "Read File",
		Class:      domain.ClassIO,
		Inputs:     []registry.PortSpec{inPort, pathInput},
		Outputs:    []registry.PortSpec{nextPort, {Name: "content", Type: domain.TypeString}, errorPort},
		Properties: []registry.PropertySpec{pathProperty},
		Executor: fileExecutor(func(ctx context.Context, fs effects.FileSystem, req *registry.Request) (map[string]any, error) {
			content, err := fs.Read(ctx, req.String("path"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"content": content}, nil
		}),
	}
}

// WriteFileType — запись файла с перезаписью.
func WriteFileType() registry.NodeType {
	return writeType("file/WriteFile", "Write File", func(ctx context.Context, fs effects.FileSystem, path, content string) error {
		return fs.Write(ctx, path, content)
	})
}

// AppendFileType — дозапись в файл (файл создаётся при необходимости).
func AppendFileType() registry.NodeType {
	return writeType("file/AppendFile", "Append File", func(ctx context.Context, fs effects.FileSystem, path, content string) error {
		return fs.Append(ctx, path, content)
	})
}

func writeType(name, title string, write func(ctx context.Context, fs effects.FileSystem, path, content string) error) registry.NodeType {
	return registry.NodeType{
		Name:       name,
		Title:      title,
		Class:      domain.ClassIO,
		Inputs:     []registry.PortSpec{inPort, pathInput, contentInput},
		Outputs:    []registry.PortSpec{nextPort, statusOutput, errorPort},
		Properties: []registry.PropertySpec{pathProperty, contentProperty},
		Executor: fileExecutor(func(ctx context.Context, fs effects.FileSystem, req *registry.Request) (map[string]any, error) {
			if err := write(ctx, fs, req.String("path"), req.String("content")); err != nil {
				return nil, err
			}
			return map[string]any{"status": StatusOK}, nil
		}),
	}
}

// DeleteFileType — удаление файла.
func DeleteFileType() registry.NodeType {
	return registry.NodeType{
		Name:       "file/DeleteFile",
		Title:      "Delete File",
		Class:      domain.ClassIO,
		Inputs:     []registry.PortSpec{inPort, pathInput},
		Outputs:    []registry.PortSpec{nextPort, statusOutput, errorPort},
		Properties: []registry.PropertySpec{pathProperty},
		Executor: fileExecutor(func(ctx context.Context, fs effects.FileSystem, req *registry.Request) (map[string]any, error) {
			if err := fs.Delete(ctx, req.String("path")); err != nil {
				return nil, err
			}
			return map[string]any{"status": StatusOK}, nil
		}),
	}
}
