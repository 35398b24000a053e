package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/mq"
	"github.com/shaiso/Nodeflow/internal/report"
	"github.com/shaiso/Nodeflow/internal/repo"
)

// RunResult — ответ синхронного запуска: запись run и отчёт.
type RunResult struct {
	Run    RunResponse    `json:"run"`
	Report *report.Report `json:"report"`
}

// RunGraph выполняет граф синхронно и возвращает отчёт.
// POST /api/v1/graphs/{id}/runs
//
// Пока run идёт, правки графа отвечают 409.
func (h *Handler) RunGraph(w http.ResponseWriter, r *http.Request) {
	g, graphID, ok := h.openPath(w, r)
	if !ok {
		return
	}
	req, ok := decodeRunRequest(w, r)
	if !ok {
		return
	}

	if g.Running() {
		HandleGraphError(w, h.logger, graph.ErrGraphLocked)
		return
	}

	run := newRun(graphID, req.Inputs)
	if HandleRepoError(w, h.logger, h.runs.Create(r.Context(), run), "") {
		return
	}
	run.MarkRunning()
	if HandleRepoError(w, h.logger, h.runs.Update(r.Context(), run), "run not found") {
		return
	}

	rep, err := h.engine.Run(r.Context(), g, engine.RunOptions{
		RunID:  run.ID.String(),
		Inputs: req.Inputs,
	})
	if err != nil {
		run.MarkFailed(err.Error())
		h.saveRun(r.Context(), run)
		HandleGraphError(w, h.logger, err)
		return
	}

	data, err := json.Marshal(rep)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	run.MarkFinished(rep.Status, data)
	h.saveRun(r.Context(), run)

	Success(w, RunResult{Run: RunFromDomain(run), Report: rep})
}

// EnqueueRun создаёт PENDING run и публикует run.requested для runner'а.
// POST /api/v1/graphs/{id}/runs/async
func (h *Handler) EnqueueRun(w http.ResponseWriter, r *http.Request) {
	graphID, ok := pathID(w, r, "id", "invalid graph id")
	if !ok {
		return
	}
	if h.sender == nil {
		Unavailable(w, "run queue is not configured")
		return
	}
	req, ok := decodeRunRequest(w, r)
	if !ok {
		return
	}

	if _, err := h.graphs.Get(r.Context(), graphID); HandleRepoError(w, h.logger, err, "graph not found") {
		return
	}

	run := newRun(graphID, req.Inputs)
	if HandleRepoError(w, h.logger, h.runs.Create(r.Context(), run), "") {
		return
	}

	// Если публикация не удалась, run остаётся PENDING и его подхватит polling runner'а.
	if err := mq.RequestRun(r.Context(), h.sender, run.ID, graphID); err != nil {
		h.logger.Warn("failed to publish run.requested", "run_id", run.ID, "error", err)
	}

	h.logger.Info("run enqueued", "run_id", run.ID, "graph_id", graphID)
	JSON(w, http.StatusAccepted, DataResponse{Data: RunFromDomain(run)})
}

// GetRun возвращает сохранённый run вместе с отчётом.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid run id")
	if !ok {
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}
	Success(w, RunFromDomain(run))
}

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?graph_id=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	if v := r.URL.Query().Get("graph_id"); v != "" {
		graphID, err := uuid.Parse(v)
		if err != nil {
			BadRequest(w, "invalid graph_id")
			return
		}
		filter.GraphID = &graphID
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = domain.ParseRunStatus(v)
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i := range runs {
		result[i] = RunFromDomain(&runs[i])
	}
	List(w, result, len(result))
}

// ListNodeTypes возвращает зарегистрированные типы узлов.
// GET /api/v1/node-types
func (h *Handler) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	types := h.registry.List()
	result := make([]NodeTypeResponse, len(types))
	for i, t := range types {
		result[i] = NodeTypeFromRegistry(t)
	}
	List(w, result, len(result))
}

// saveRun сохраняет итог run независимо от отмены запроса.
func (h *Handler) saveRun(ctx context.Context, run *domain.Run) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.runs.Update(ctx, run); err != nil {
		h.logger.Error("failed to save run", "run_id", run.ID, "error", err)
	}
}

func newRun(graphID uuid.UUID, inputs map[string]any) *domain.Run {
	return &domain.Run{
		ID:        uuid.New(),
		GraphID:   graphID,
		Status:    domain.RunStatusPending,
		Inputs:    inputs,
		CreatedAt: time.Now(),
	}
}

// decodeRunRequest разбирает тело запуска; пустое тело допустимо.
func decodeRunRequest(w http.ResponseWriter, r *http.Request) (CreateRunRequest, bool) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return req, false
	}
	return req, true
}
