package nodes

import (
	"context"
	"fmt"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/registry"
)

// Порты, общие для большинства узлов.
const (
	PortIn    = "in"
	PortNext  = "next"
	PortError = "error"
)

var (
	inPort    = registry.PortSpec{Name: PortIn, Type: domain.TypeControl}
	nextPort  = registry.PortSpec{Name: PortNext, Type: domain.TypeControl}
	errorPort = registry.PortSpec{Name: PortError, Type: domain.TypeString, Error: true}
)

// Types возвращает все встроенные типы.
func Types() []registry.NodeType {
	return []registry.NodeType{
		StartType(),
		EndType(),
		ConditionType(),
		LogType(),
		FormatType(),
		DelayType(),
		ReadFileType(),
		WriteFileType(),
		AppendFileType(),
		DeleteFileType(),
		HTTPRequestType(),
	}
}

// Register регистрирует встроенные типы в reg.
func Register(reg *registry.Registry) error {
	for _, t := range Types() {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRegistry создаёт реестр со всеми встроенными типами.
// Вызывается один раз при старте процесса.
// Сигнатуры встроенных типов статичны, ошибка регистрации — паника.
func DefaultRegistry() *registry.Registry {
	reg := registry.New()
	for _, t := range Types() {
		reg.MustRegister(t)
	}
	return reg
}

// checkCancelled возвращает ErrCancelled, если контекст уже отменён.
func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}
