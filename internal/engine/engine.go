package engine

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/effects"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/report"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// Config — конфигурация движка.
type Config struct {
	// Effects — capability для I/O узлов. nil — I/O узлы падают с ErrNoCapability.
	Effects *effects.Effects

	// Observer получает уведомления всех run движка.
	Observer Observer

	// NodeTimeout — таймаут узла по умолчанию (0 — без таймаута).
	NodeTimeout time.Duration

	// Env — переменные окружения, доступные шаблонам как .Env.
	Env map[string]string

	// Logger — если nil, берётся из контекста run.
	Logger *slog.Logger
}

// RunOptions — параметры одного run.
type RunOptions struct {
	// RunID — идентификатор run; пустой заменяется сгенерированным.
	RunID string

	// Inputs — входные параметры run. Переопределяют значения
	// по умолчанию из свойства inputs узла Start.
	Inputs map[string]any

	// NodeTimeout переопределяет Config.NodeTimeout.
	// Свойство узла timeout_sec имеет приоритет над обоими.
	NodeTimeout time.Duration

	// Env дополняет Config.Env.
	Env map[string]string

	// Observer — дополнительный observer только для этого run.
	Observer Observer
}

// Engine выполняет графы. Один Engine может вести несколько run
// разных графов одновременно; каждый run владеет своим состоянием.
type Engine struct {
	effects     *effects.Effects
	observer    Observer
	nodeTimeout time.Duration
	env         map[string]string
	logger      *slog.Logger
}

// New создаёт движок.
func New(cfg Config) *Engine {
	return &Engine{
		effects:     cfg.Effects,
		observer:    cfg.Observer,
		nodeTimeout: cfg.NodeTimeout,
		env:         maps.Clone(cfg.Env),
		logger:      cfg.Logger,
	}
}

// Run выполняет граф целиком и возвращает отчёт.
//
// Ошибки узлов попадают в отчёт. Ошибка возвращается только для
// фатальных случаев: граф уже выполняется (ErrGraphLocked), граф
// не проходит проверку (ErrInvalidGraph) или нарушен инвариант
// движка (ErrInvariant). Отмена ctx не является ошибкой: оставшиеся
// узлы помечаются skipped, отчёт получает Cancelled.
func (e *Engine) Run(ctx context.Context, g *graph.Graph, opts RunOptions) (*report.Report, error) {
	x, err := e.Start(ctx, g, opts)
	if err != nil {
		return nil, err
	}

	for {
		done, err := x.Step(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			return x.Report(), nil
		}
	}
}

// Start блокирует граф и готовит пошаговое выполнение.
// Вызывающий обязан вызывать Step до done=true: блокировка графа
// снимается только при завершении run.
func (e *Engine) Start(ctx context.Context, g *graph.Graph, opts RunOptions) (*Execution, error) {
	snap, err := g.BeginRun()
	if err != nil {
		return nil, err
	}

	x, err := e.prepare(ctx, snap, opts)
	if err != nil {
		g.EndRun()
		return nil, err
	}
	x.release = g.EndRun

	x.observer.OnRunStarted(ctx, x.runID, snap.GraphID)
	return x, nil
}

// StartSnapshot готовит выполнение уже снятой копии графа.
// Используется, когда граф восстановлен из документа только для одного run.
func (e *Engine) StartSnapshot(ctx context.Context, snap *graph.Snapshot, opts RunOptions) (*Execution, error) {
	x, err := e.prepare(ctx, snap, opts)
	if err != nil {
		return nil, err
	}
	x.observer.OnRunStarted(ctx, x.runID, snap.GraphID)
	return x, nil
}

func (e *Engine) prepare(ctx context.Context, snap *graph.Snapshot, opts RunOptions) (*Execution, error) {
	if vs := snap.Validate(); len(vs) > 0 {
		return nil, &InvalidGraphError{Violations: vs}
	}

	p, err := compile(snap)
	if err != nil {
		return nil, err
	}

	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.NodeTimeout == 0 {
		opts.NodeTimeout = e.nodeTimeout
	}

	logger := e.logger
	if logger == nil {
		logger = telemetry.FromContext(ctx)
	}
	logger = telemetry.WithGraphID(telemetry.WithRunID(logger, opts.RunID), snap.GraphID)

	observers := Observers{e.observer, opts.Observer}

	x := newExecution(e, snap, p, opts, observers, logger)
	return x, nil
}
