package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Nodeflow/internal/domain"
)

const runColumns = `id, graph_id, status, inputs, report, error, idempotency_key,
	started_at, finished_at, created_at`

// RunRepo — хранилище runs и их отчётов.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// RunFilter — параметры выборки runs.
type RunFilter struct {
	GraphID *uuid.UUID
	Status  domain.RunStatus
	Limit   int
	Offset  int
}

// Create сохраняет новый run.
// Повтор ключа идемпотентности для того же графа — ErrAlreadyExists.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	inputs, err := json.Marshal(run.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO runs (id, graph_id, status, inputs, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (graph_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
	`,
		run.ID,
		run.GraphID,
		string(run.Status),
		inputs,
		nullString(run.IdempotencyKey),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: idempotency key %s", ErrAlreadyExists, run.IdempotencyKey)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// GetByIdempotencyKey возвращает run графа по ключу идемпотентности.
func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, graphID uuid.UUID, key string) (*domain.Run, error) {
	run, err := scanRun(r.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE graph_id = $1 AND idempotency_key = $2`, graphID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run by idempotency key: %w", err)
	}
	return run, nil
}

// List возвращает runs по фильтру, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE ($1::uuid IS NULL OR graph_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`,
		nullUUID(filter.GraphID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListPending возвращает самые старые PENDING runs.
func (r *RunRepo) ListPending(ctx context.Context, limit int) ([]domain.Run, error) {
	status := domain.RunStatusPending
	runs, err := r.List(ctx, RunFilter{Status: status, Limit: limit})
	if err != nil {
		return nil, err
	}
	// List сортирует по убыванию, а pending обрабатываются по очереди
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}

// Update сохраняет статус, время, ошибку и отчёт run.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET status = $2, started_at = $3, finished_at = $4, error = $5, report = $6
		WHERE id = $1
	`,
		run.ID,
		string(run.Status),
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
		nullJSON(run.Report),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanRun читает строку runs; подходит и для QueryRow, и для Rows.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run            domain.Run
		status         string
		inputs, report []byte
		runErr, key    *string
	)

	err := row.Scan(
		&run.ID,
		&run.GraphID,
		&status,
		&inputs,
		&report,
		&runErr,
		&key,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = domain.ParseRunStatus(status)
	if len(inputs) > 0 {
		if err := json.Unmarshal(inputs, &run.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}
	if len(report) > 0 {
		run.Report = report
	}
	if runErr != nil {
		run.Error = *runErr
	}
	if key != nil {
		run.IdempotencyKey = *key
	}
	return &run, nil
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

func nullJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
