package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — таблицы Nodeflow. Статусы хранятся текстом
// (domain.RunStatus), отчёт и документ графа — jsonb.
const schema = `
CREATE TABLE IF NOT EXISTS graphs (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	document    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS runs (
	id               UUID PRIMARY KEY,
	graph_id         UUID NOT NULL REFERENCES graphs(id) ON DELETE CASCADE,
	status           TEXT NOT NULL,
	inputs           JSONB,
	report           JSONB,
	error            TEXT,
	idempotency_key  TEXT,
	started_at       TIMESTAMPTZ,
	finished_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_runs_graph_id ON runs (graph_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs (status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_idempotency
	ON runs (graph_id, idempotency_key) WHERE idempotency_key IS NOT NULL;

CREATE TABLE IF NOT EXISTS schedules (
	graph_id     UUID PRIMARY KEY REFERENCES graphs(id) ON DELETE CASCADE,
	cron_expr    TEXT NOT NULL,
	timezone     TEXT NOT NULL DEFAULT 'UTC',
	enabled      BOOLEAN NOT NULL DEFAULT TRUE,
	next_due_at  TIMESTAMPTZ,
	last_run_at  TIMESTAMPTZ,
	last_run_id  UUID,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_schedules_due ON schedules (next_due_at) WHERE enabled;
`

// EnsureSchema создаёт таблицы, если их ещё нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
