package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/mq"
	"github.com/shaiso/Nodeflow/internal/registry"
	"github.com/shaiso/Nodeflow/internal/repo"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 10
)

// GraphStore — хранилище графов (repo.GraphRepo).
type GraphStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.StoredGraph, error)
}

// RunStore — хранилище runs (repo.RunRepo).
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListPending(ctx context.Context, limit int) ([]domain.Run, error)
	Update(ctx context.Context, run *domain.Run) error
}

// Runner выполняет сохранённые графы в фоне.
//
// Источники работы:
//   - очередь runs.requested (event-driven)
//   - периодический опрос PENDING runs (fallback, если сообщение потеряно)
//
// Каждый run выполняется в своей горутине на отдельной копии графа,
// загруженной из документа.
type Runner struct {
	graphs   GraphStore
	runs     RunStore
	registry *registry.Registry
	engine   *engine.Engine
	conn     *mq.Connection

	pollInterval time.Duration
	batchSize    int
	logger       *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Config — конфигурация Runner.
type Config struct {
	Graphs   GraphStore
	Runs     RunStore
	Registry *registry.Registry
	Engine   *engine.Engine

	// Conn — опционально; без него работает только polling.
	Conn *mq.Connection

	PollInterval time.Duration
	BatchSize    int
	Logger       *slog.Logger
}

// New создаёт Runner.
func New(cfg Config) *Runner {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		graphs:       cfg.Graphs,
		runs:         cfg.Runs,
		registry:     cfg.Registry,
		engine:       cfg.Engine,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
		active:       make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start запускает consumer и polling. Не блокирует.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.logger.Info("starting runner", "poll_interval", r.pollInterval, "batch_size", r.batchSize)

	if r.conn != nil {
		consumer := mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
			Queue:    mq.QueueRunsRequested,
			Handler:  r.handleRunRequested,
			Prefetch: r.batchSize,
		})
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("run consumer stopped", "error", err)
			}
		}()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.pollLoop(ctx)
	}()
}

// Stop отменяет активные runs и ждёт завершения горутин.
// Отменённые runs сохраняются со статусом CANCELLED.
func (r *Runner) Stop() {
	r.logger.Info("stopping runner", "active_runs", r.ActiveRuns())
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("runner stopped")
}

// handleRunRequested — обработчик сообщения run.requested.
func (r *Runner) handleRunRequested(ctx context.Context, msg *mq.Message) error {
	p, err := mq.ParsePayload[mq.RunRequestedPayload](msg)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrPermanent, err)
	}

	err = r.Submit(ctx, p.RunID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRunNotPending), errors.Is(err, ErrRunAlreadyActive), errors.Is(err, ErrRunRejected):
		r.logger.Debug("run request ignored", "run_id", p.RunID, "reason", err)
		return nil
	case errors.Is(err, ErrRunNotFound):
		return fmt.Errorf("%w: %v", mq.ErrPermanent, err)
	default:
		return err
	}
}

func (r *Runner) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	// Сразу при старте: подхватываем runs, созданные пока runner был выключен
	r.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Runner) poll(ctx context.Context) {
	pending, err := r.runs.ListPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list pending runs", "error", err)
		return
	}

	for i := range pending {
		if r.isActive(pending[i].ID) {
			continue
		}
		if err := r.Submit(ctx, pending[i].ID); err != nil && !errors.Is(err, ErrRunAlreadyActive) {
			r.logger.Error("failed to submit pending run", "run_id", pending[i].ID, "error", err)
		}
	}
}

// Submit переводит run в RUNNING и выполняет его в фоне.
func (r *Runner) Submit(ctx context.Context, runID uuid.UUID) error {
	run, g, err := r.prepare(ctx, runID)
	if errors.Is(err, ErrRunRejected) {
		return nil
	}
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := r.activate(runID, cancel); err != nil {
		cancel()
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.deactivate(runID)
		defer cancel()

		// Остановка runner'а отменяет и активные runs
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		r.execute(runCtx, run, g)
	}()
	return nil
}

// Execute синхронно выполняет PENDING run и сохраняет результат.
func (r *Runner) Execute(ctx context.Context, runID uuid.UUID) (*domain.Run, error) {
	run, g, err := r.prepare(ctx, runID)
	if errors.Is(err, ErrRunRejected) {
		return run, nil
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := r.activate(runID, cancel); err != nil {
		return nil, err
	}
	defer r.deactivate(runID)

	r.execute(ctx, run, g)
	return run, nil
}

// prepare загружает run и его граф. Если граф не удалось собрать,
// run сохраняется как FAILED и возвращается вместе с ErrRunRejected.
func (r *Runner) prepare(ctx context.Context, runID uuid.UUID) (*domain.Run, *graph.Graph, error) {
	run, err := r.runs.GetByID(ctx, runID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get run: %w", err)
	}
	if run.Status != domain.RunStatusPending {
		return nil, nil, fmt.Errorf("%w: %s is %s", ErrRunNotPending, runID, run.Status)
	}

	stored, err := r.graphs.Get(ctx, run.GraphID)
	if errors.Is(err, repo.ErrNotFound) {
		return run, nil, r.reject(ctx, run, fmt.Errorf("graph %s not found", run.GraphID))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get graph: %w", err)
	}
	g, err := graph.Load(r.registry, stored.Document)
	if err != nil {
		return run, nil, r.reject(ctx, run, fmt.Errorf("build graph %s: %w", run.GraphID, err))
	}
	return run, g, nil
}

// reject сохраняет run как FAILED до начала выполнения.
func (r *Runner) reject(ctx context.Context, run *domain.Run, cause error) error {
	run.MarkFailed(cause.Error())
	if err := r.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("%v; store failure: %w", cause, err)
	}
	r.logger.Warn("run rejected", "run_id", run.ID, "error", cause)
	return fmt.Errorf("%w: %v", ErrRunRejected, cause)
}

// execute выполняет граф и сохраняет итог run.
func (r *Runner) execute(ctx context.Context, run *domain.Run, g *graph.Graph) {
	logger := telemetry.WithGraphID(telemetry.WithRunID(r.logger, run.ID.String()), run.GraphID.String())
	store := context.WithoutCancel(ctx)

	run.MarkRunning()
	if err := r.runs.Update(store, run); err != nil {
		logger.Error("failed to mark run running", "error", err)
		return
	}

	rep, err := r.engine.Run(telemetry.WithLogger(ctx, logger), g, engine.RunOptions{
		RunID:  run.ID.String(),
		Inputs: run.Inputs,
	})
	if err != nil {
		logger.Error("run aborted", "error", err)
		run.MarkFailed(err.Error())
	} else {
		data, mErr := json.Marshal(rep)
		if mErr != nil {
			logger.Error("failed to encode report", "error", mErr)
		}
		run.MarkFinished(rep.Status, data)
	}

	if err := r.runs.Update(store, run); err != nil {
		logger.Error("failed to store run result", "error", err)
		return
	}
	logger.Info("run finished", "status", run.Status, "duration", run.Duration())
}

// Cancel отменяет активный run. false — run не выполняется этим runner'ом.
func (r *Runner) Cancel(runID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.active[runID]
	if ok {
		cancel()
	}
	return ok
}

// ActiveRuns возвращает число выполняющихся runs.
func (r *Runner) ActiveRuns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *Runner) isActive(runID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[runID]
	return ok
}

func (r *Runner) activate(runID uuid.UUID, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[runID]; ok {
		return fmt.Errorf("%w: %s", ErrRunAlreadyActive, runID)
	}
	r.active[runID] = cancel
	return nil
}

func (r *Runner) deactivate(runID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, runID)
}
