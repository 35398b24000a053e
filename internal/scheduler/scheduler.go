package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/mq"
	"github.com/shaiso/Nodeflow/internal/repo"
)

// ScheduleStore — хранилище расписаний (repo.ScheduleRepo).
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	Upsert(ctx context.Context, s *domain.Schedule) error
	Update(ctx context.Context, s *domain.Schedule) error
	Delete(ctx context.Context, graphID uuid.UUID) error
}

// RunStore — хранилище runs (repo.RunRepo).
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByIdempotencyKey(ctx context.Context, graphID uuid.UUID, key string) (*domain.Run, error)
}

// Scheduler создаёт runs для графов, чьё время запуска подошло.
type Scheduler struct {
	schedules ScheduleStore
	runs      RunStore
	sender    mq.Sender
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Runs      RunStore

	// Sender — опционально; без него runs подхватывает polling runner'а.
	Sender mq.Sender

	Logger    *slog.Logger
	BatchSize int // расписаний за тик (по умолчанию 100)
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		runs:      cfg.Runs,
		sender:    cfg.Sender,
		logger:    logger,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run вызывает Tick с заданным интервалом до отмены ctx.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick обрабатывает все расписания, время которых подошло.
// Ошибка одного расписания не мешает остальным.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	due, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	created := 0
	for i := range due {
		sched := &due[i]
		ok, err := s.fire(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule", "graph_id", sched.GraphID, "error", err)
			continue
		}
		if ok {
			created++
		}
	}

	s.logger.Info("scheduler tick completed", "due", len(due), "runs_created", created)
	return nil
}

// fire создаёт run для одного расписания и сдвигает next_due_at.
// Возвращает false, если run на этот момент уже был создан.
func (s *Scheduler) fire(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	key := IdempotencyKey(sched.GraphID, *sched.NextDueAt)

	var runID uuid.UUID
	created := false

	existing, err := s.runs.GetByIdempotencyKey(ctx, sched.GraphID, key)
	switch {
	case err == nil:
		runID = existing.ID
	case errors.Is(err, repo.ErrNotFound):
		run := &domain.Run{
			ID:             uuid.New(),
			GraphID:        sched.GraphID,
			Status:         domain.RunStatusPending,
			IdempotencyKey: key,
			CreatedAt:      now,
		}
		if err := s.runs.Create(ctx, run); err != nil {
			return false, fmt.Errorf("create run: %w", err)
		}
		runID, created = run.ID, true
		s.logger.Info("created run from schedule", "run_id", run.ID, "graph_id", sched.GraphID)
	default:
		return false, fmt.Errorf("check idempotency: %w", err)
	}

	next, err := NextDue(sched.CronExpr, now)
	if err != nil {
		// Выражение стало невалидным: выключаем, иначе оно будет due вечно
		s.logger.Error("invalid schedule, disabling", "graph_id", sched.GraphID, "error", err)
		sched.Enabled = false
		next = *sched.NextDueAt
	}

	sched.RecordRun(runID, next)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return created, fmt.Errorf("update schedule: %w", err)
	}

	if created && s.sender != nil {
		if err := mq.RequestRun(ctx, s.sender, runID, sched.GraphID); err != nil {
			s.logger.Warn("failed to publish run.requested", "run_id", runID, "error", err)
		}
	}
	return created, nil
}

// Sync приводит расписание графа в соответствие с его Start-узлом.
// Вызывается при каждом сохранении графа.
func Sync(ctx context.Context, store ScheduleStore, graphID uuid.UUID, doc *graph.Document) error {
	sched, ok, err := FromDocument(graphID, doc, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return store.Delete(ctx, graphID)
	}
	return store.Upsert(ctx, sched)
}
