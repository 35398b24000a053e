package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/expr"
	"github.com/shaiso/Nodeflow/internal/registry"
)

// LogType — запись сообщения в лог run.
//
// Вход message берётся из связи или одноимённого свойства.
// Свойство level: debug, info (по умолчанию), warn, error.
func LogType() registry.NodeType {
	return registry.NodeType{
		Name:  "core/Log",
		Title: "Log",
		Class: domain.ClassPure,
		Inputs: []registry.PortSpec{
			inPort,
			{Name: "message", Type: domain.TypeString, Required: true},
		},
		Outputs: []registry.PortSpec{
			nextPort,
			{Name: "message", Type: domain.TypeString},
		},
		Properties: []registry.PropertySpec{
			{Name: "message", Type: domain.PropString},
			{Name: "level", Type: domain.PropString},
		},
		ValidateProps: func(props map[string]any) error {
			if _, err := parseLevel(registry.GetString(props, "level")); err != nil {
				return err
			}
			return nil
		},
		Executor: registry.ExecutorFunc(executeLog),
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
	}
}

func executeLog(ctx context.Context, req *registry.Request) (*registry.Result, error) {
	level, err := parseLevel(registry.GetString(req.Properties, "level"))
	if err != nil {
		return nil, err
	}

	message := req.String("message")
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, level, message)

	return registry.NewResult(map[string]any{"message": message}), nil
}

// FormatType — строка по шаблону.
//
// Свойство template рендерится с входами узла:
//
//	{"template": "Hello, {{ .In.value }}! Run input: {{ .Inputs.name }}"}
func FormatType() registry.NodeType {
	return registry.NodeType{
		Name:  "core/Format",
		Title: "Format",
		Class: domain.ClassPure,
		Inputs: []registry.PortSpec{
			inPort,
			{Name: "value", Type: domain.TypeString},
		},
		Outputs: []registry.PortSpec{
			nextPort,
			{Name: "text", Type: domain.TypeString},
		},
		Properties: []registry.PropertySpec{
			{Name: "template", Type: domain.PropString, Required: true, Verbatim: true},
		},
		Executor: registry.ExecutorFunc(executeFormat),
	}
}

func executeFormat(ctx context.Context, req *registry.Request) (*registry.Result, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	scope := req.Scope
	if scope == nil {
		scope = expr.NewContext(nil).WithIn(req.Inputs)
	}

	text, err := expr.Render(registry.GetString(req.Properties, "template"), scope)
	if err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	return registry.NewResult(map[string]any{"text": text}), nil
}

// DelayType — пауза.
//
// Свойства duration_sec или duration_ms; duration_sec приоритетнее.
// Нулевая длительность означает отсутствие паузы, отрицательная
// отклоняется. Отмена контекста прерывает паузу.
func DelayType() registry.NodeType {
	return registry.NodeType{
		Name:    "core/Delay",
		Title:   "Delay",
		Class:   domain.ClassPure,
		Inputs:  []registry.PortSpec{inPort},
		Outputs: []registry.PortSpec{nextPort, {Name: "duration_ms", Type: domain.TypeNumber}},
		Properties: []registry.PropertySpec{
			{Name: "duration_sec", Type: domain.PropNumber},
			{Name: "duration_ms", Type: domain.PropNumber},
		},
		ValidateProps: validateDelay,
		Executor:      registry.ExecutorFunc(executeDelay),
	}
}

func validateDelay(props map[string]any) error {
	_, hasSec := props["duration_sec"]
	_, hasMs := props["duration_ms"]
	if !hasSec && !hasMs {
		return fmt.Errorf("%w: core/Delay: duration_sec or duration_ms required", ErrInvalidConfig)
	}
	// Шаблоны проверяются только при выполнении.
	for _, key := range []string{"duration_sec", "duration_ms"} {
		if _, isText := props[key].(string); isText {
			continue
		}
		if v, ok := props[key]; ok && expr.ToNumber(v) < 0 {
			return fmt.Errorf("%w: core/Delay: %s must not be negative", ErrInvalidConfig, key)
		}
	}
	return nil
}

func delayDuration(props map[string]any) (time.Duration, error) {
	var d time.Duration
	if v, ok := props["duration_sec"]; ok {
		d = time.Duration(expr.ToNumber(v) * float64(time.Second))
	} else {
		d = time.Duration(expr.ToNumber(props["duration_ms"]) * float64(time.Millisecond))
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: core/Delay: duration must not be negative", ErrInvalidConfig)
	}
	return d, nil
}

func executeDelay(ctx context.Context, req *registry.Request) (*registry.Result, error) {
	d, err := delayDuration(req.Properties)
	if err != nil {
		return nil, err
	}

	if d == 0 {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		return registry.NewResult(map[string]any{"duration_ms": int64(0)}), nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	case <-timer.C:
		return registry.NewResult(map[string]any{"duration_ms": d.Milliseconds()}), nil
	}
}
