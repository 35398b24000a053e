package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run — запись о выполнении графа.
//
// Run создаётся когда:
// - UI запускает граф через API (синхронно или через очередь)
// - Scheduler создаёт run по расписанию Start-узла
//
// Report хранит сериализованный report.Report завершённого run.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// GraphID — граф, который выполняется.
	GraphID uuid.UUID `json:"graph_id"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Inputs — входные параметры для Start-узла.
	Inputs map[string]any `json:"inputs,omitempty"`

	// Report — итоговый отчёт (JSON), nil пока run не завершён.
	Report json.RawMessage `json:"report,omitempty"`

	// Error — фатальная ошибка run (не ошибки отдельных узлов).
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для scheduled runs:
	// "{graph_id}_{next_due_at_unix}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkFinished фиксирует итог run вместе с отчётом.
func (r *Run) MarkFinished(status RunStatus, report json.RawMessage) {
	now := time.Now()
	r.Status = status
	r.Report = report
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с фатальной ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}
