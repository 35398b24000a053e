package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/repo"
	"github.com/shaiso/Nodeflow/internal/scheduler"
)

// ListGraphs возвращает список графов без документов.
// GET /api/v1/graphs?limit=...&offset=...
func (h *Handler) ListGraphs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	graphs, err := h.graphs.List(r.Context(), limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]GraphResponse, len(graphs))
	for i := range graphs {
		result[i] = GraphFromDomain(&graphs[i], false)
	}
	List(w, result, len(result))
}

// CreateGraph создаёт граф, пустой или из переданного документа.
// POST /api/v1/graphs
func (h *Handler) CreateGraph(w http.ResponseWriter, r *http.Request) {
	var req CreateGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	id := uuid.New()
	doc := req.Document
	if doc == nil {
		doc = &graph.Document{}
	}
	doc.ID = id.String()
	if req.Name != "" {
		doc.Name = req.Name
	}
	if doc.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	g, err := graph.Import(h.registry, doc)
	if HandleGraphError(w, h.logger, err) {
		return
	}

	data, err := json.Marshal(g.Export())
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	now := time.Now()
	stored := &domain.StoredGraph{
		ID:        id,
		Name:      g.Name(),
		Document:  data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if HandleRepoError(w, h.logger, h.graphs.Create(r.Context(), stored), "") {
		return
	}
	h.remember(id, g)
	h.syncSchedule(r.Context(), id, g)

	h.logger.Info("graph created", "graph_id", id, "nodes", g.Len())
	Created(w, GraphFromDomain(stored, true))
}

// GetGraph возвращает граф с документом.
// GET /api/v1/graphs/{id}
func (h *Handler) GetGraph(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid graph id")
	if !ok {
		return
	}

	stored, err := h.graphs.Get(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "graph not found") {
		return
	}
	Success(w, GraphFromDomain(stored, true))
}

// ReplaceGraph заменяет документ графа целиком.
// PUT /api/v1/graphs/{id}
func (h *Handler) ReplaceGraph(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid graph id")
	if !ok {
		return
	}

	var doc graph.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	doc.ID = id.String()

	g, err := graph.Import(h.registry, &doc)
	if HandleGraphError(w, h.logger, err) {
		return
	}

	if current, err := h.open(r.Context(), id); err == nil && current.Running() {
		HandleGraphError(w, h.logger, graph.ErrGraphLocked)
		return
	}

	stored, err := h.store(r.Context(), id, g)
	if HandleRepoError(w, h.logger, err, "graph not found") {
		return
	}
	h.remember(id, g)
	Success(w, GraphFromDomain(stored, true))
}

// DeleteGraph удаляет граф вместе с его расписанием.
// DELETE /api/v1/graphs/{id}
func (h *Handler) DeleteGraph(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid graph id")
	if !ok {
		return
	}

	if g, err := h.open(r.Context(), id); err == nil && g.Running() {
		HandleGraphError(w, h.logger, graph.ErrGraphLocked)
		return
	}

	if HandleRepoError(w, h.logger, h.graphs.Delete(r.Context(), id), "graph not found") {
		return
	}
	h.forget(id)
	if h.schedules != nil {
		if err := h.schedules.Delete(r.Context(), id); err != nil && !errors.Is(err, repo.ErrNotFound) {
			h.logger.Warn("failed to delete schedule", "graph_id", id, "error", err)
		}
	}

	h.logger.Info("graph deleted", "graph_id", id)
	NoContent(w)
}

// AddNode добавляет узел в граф.
// POST /api/v1/graphs/{id}/nodes
func (h *Handler) AddNode(w http.ResponseWriter, r *http.Request) {
	g, id, ok := h.openPath(w, r)
	if !ok {
		return
	}

	var req AddNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Type == "" {
		BadRequest(w, "type is required")
		return
	}

	nodeID, err := g.AddNodeWithID(req.ID, req.Type, req.Properties)
	if HandleGraphError(w, h.logger, err) {
		return
	}
	if !h.persist(w, r, id, g) {
		return
	}

	node, _ := g.Node(nodeID)
	Created(w, node)
}

// RemoveNode удаляет узел и все его связи.
// DELETE /api/v1/graphs/{id}/nodes/{node}
func (h *Handler) RemoveNode(w http.ResponseWriter, r *http.Request) {
	g, id, ok := h.openPath(w, r)
	if !ok {
		return
	}

	if HandleGraphError(w, h.logger, g.RemoveNode(r.PathValue("node"))) {
		return
	}
	if !h.persist(w, r, id, g) {
		return
	}
	NoContent(w)
}

// AddLink связывает выход одного узла со входом другого.
// POST /api/v1/graphs/{id}/links
func (h *Handler) AddLink(w http.ResponseWriter, r *http.Request) {
	g, id, ok := h.openPath(w, r)
	if !ok {
		return
	}

	var req AddLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	linkID, err := g.AddLink(req.From, req.FromPort, req.To, req.ToPort)
	if HandleGraphError(w, h.logger, err) {
		return
	}
	if !h.persist(w, r, id, g) {
		return
	}
	Created(w, LinkResponse{ID: linkID, AddLinkRequest: req})
}

// RemoveLink удаляет связь.
// DELETE /api/v1/graphs/{id}/links/{link}
func (h *Handler) RemoveLink(w http.ResponseWriter, r *http.Request) {
	g, id, ok := h.openPath(w, r)
	if !ok {
		return
	}

	if HandleGraphError(w, h.logger, g.RemoveLink(r.PathValue("link"))) {
		return
	}
	if !h.persist(w, r, id, g) {
		return
	}
	NoContent(w)
}

// ValidateGraph возвращает все структурные нарушения графа.
// GET /api/v1/graphs/{id}/validate
func (h *Handler) ValidateGraph(w http.ResponseWriter, r *http.Request) {
	g, _, ok := h.openPath(w, r)
	if !ok {
		return
	}

	violations := g.Validate()
	if violations == nil {
		violations = []graph.Violation{}
	}
	Success(w, ValidateResponse{Valid: len(violations) == 0, Violations: violations})
}

// openPath разбирает {id} и открывает граф, отвечая ошибкой при неудаче.
func (h *Handler) openPath(w http.ResponseWriter, r *http.Request) (*graph.Graph, uuid.UUID, bool) {
	id, ok := pathID(w, r, "id", "invalid graph id")
	if !ok {
		return nil, uuid.Nil, false
	}

	g, err := h.open(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, "graph not found")
		return nil, id, false
	}
	if err != nil {
		InternalError(w, h.logger, err)
		return nil, id, false
	}
	return g, id, true
}

// persist сохраняет текущий документ графа после правки.
func (h *Handler) persist(w http.ResponseWriter, r *http.Request, id uuid.UUID, g *graph.Graph) bool {
	if _, err := h.store(r.Context(), id, g); err != nil {
		// Документ в хранилище отстал от графа в памяти: перечитаем при следующем open.
		h.forget(id)
		HandleRepoError(w, h.logger, err, "graph not found")
		return false
	}
	return true
}

func (h *Handler) store(ctx context.Context, id uuid.UUID, g *graph.Graph) (*domain.StoredGraph, error) {
	data, err := json.Marshal(g.Export())
	if err != nil {
		return nil, err
	}

	stored, err := h.graphs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stored.Name = g.Name()
	stored.Document = data
	stored.Touch()
	if err := h.graphs.Update(ctx, stored); err != nil {
		return nil, err
	}

	h.syncSchedule(ctx, id, g)
	return stored, nil
}

// syncSchedule обновляет расписание по Start-узлу. Ошибка не отменяет сохранение.
func (h *Handler) syncSchedule(ctx context.Context, id uuid.UUID, g *graph.Graph) {
	if h.schedules == nil {
		return
	}
	if err := scheduler.Sync(ctx, h.schedules, id, g.Export()); err != nil && !errors.Is(err, repo.ErrNotFound) {
		h.logger.Warn("failed to sync schedule", "graph_id", id, "error", err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		BadRequest(w, msg)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
