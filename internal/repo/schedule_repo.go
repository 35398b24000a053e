package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Nodeflow/internal/domain"
)

const scheduleColumns = `graph_id, cron_expr, timezone, enabled,
	next_due_at, last_run_at, last_run_id, updated_at`

// ScheduleRepo — расписания графов (по одному на граф).
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Upsert создаёт или обновляет расписание графа.
// Время последнего запуска сохраняется.
func (r *ScheduleRepo) Upsert(ctx context.Context, s *domain.Schedule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedules (graph_id, cron_expr, timezone, enabled, next_due_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (graph_id) DO UPDATE SET
			cron_expr   = EXCLUDED.cron_expr,
			timezone    = EXCLUDED.timezone,
			enabled     = EXCLUDED.enabled,
			next_due_at = EXCLUDED.next_due_at,
			updated_at  = EXCLUDED.updated_at
	`, s.GraphID, s.CronExpr, s.Timezone, s.Enabled, s.NextDueAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

// Get возвращает расписание графа.
func (r *ScheduleRepo) Get(ctx context.Context, graphID uuid.UUID) (*domain.Schedule, error) {
	s, err := scanSchedule(r.pool.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE graph_id = $1`, graphID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

// List возвращает все расписания.
func (r *ScheduleRepo) List(ctx context.Context) ([]domain.Schedule, error) {
	return r.query(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY updated_at DESC`)
}

// ListDue возвращает включённые расписания, время которых подошло.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	return r.query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE enabled AND next_due_at IS NOT NULL AND next_due_at <= $1
		ORDER BY next_due_at ASC
		LIMIT $2
	`, now, limit)
}

// Update сохраняет состояние запуска расписания.
func (r *ScheduleRepo) Update(ctx context.Context, s *domain.Schedule) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET enabled = $2, next_due_at = $3, last_run_at = $4, last_run_id = $5, updated_at = $6
		WHERE graph_id = $1
	`, s.GraphID, s.Enabled, s.NextDueAt, s.LastRunAt, s.LastRunID, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет расписание графа. Отсутствие расписания не ошибка.
func (r *ScheduleRepo) Delete(ctx context.Context, graphID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE graph_id = $1`, graphID); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepo) query(ctx context.Context, sql string, args ...any) ([]domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	err := row.Scan(
		&s.GraphID,
		&s.CronExpr,
		&s.Timezone,
		&s.Enabled,
		&s.NextDueAt,
		&s.LastRunAt,
		&s.LastRunID,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
