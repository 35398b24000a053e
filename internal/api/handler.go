package api

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/mq"
	"github.com/shaiso/Nodeflow/internal/registry"
	"github.com/shaiso/Nodeflow/internal/repo"
	"github.com/shaiso/Nodeflow/internal/scheduler"
)

// GraphStore — хранилище графов (repo.GraphRepo).
type GraphStore interface {
	Create(ctx context.Context, g *domain.StoredGraph) error
	Get(ctx context.Context, id uuid.UUID) (*domain.StoredGraph, error)
	List(ctx context.Context, limit, offset int) ([]domain.StoredGraph, error)
	Update(ctx context.Context, g *domain.StoredGraph) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RunStore — хранилище runs (repo.RunRepo).
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
	Update(ctx context.Context, run *domain.Run) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	graphs    GraphStore
	runs      RunStore
	schedules scheduler.ScheduleStore
	sender    mq.Sender
	registry  *registry.Registry
	engine    *engine.Engine
	logger    *slog.Logger
	metrics   prometheus.Gatherer
	health    func(ctx context.Context) error

	ws *workspace
}

// Config — конфигурация для создания Handler.
type Config struct {
	Graphs GraphStore
	Runs   RunStore

	// Schedules — опционально; без него расписания Start-узлов
	// не синхронизируются при сохранении графа.
	Schedules scheduler.ScheduleStore

	// Sender — опционально; без него POST .../runs/async недоступен.
	Sender mq.Sender

	Registry *registry.Registry
	Engine   *engine.Engine
	Logger   *slog.Logger

	// Metrics — источник для /metrics (nil — маршрут не регистрируется).
	Metrics prometheus.Gatherer

	// Health — проверка зависимостей для /healthz (например, pool.Ping).
	Health func(ctx context.Context) error
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		graphs:    cfg.Graphs,
		runs:      cfg.Runs,
		schedules: cfg.Schedules,
		sender:    cfg.Sender,
		registry:  cfg.Registry,
		engine:    cfg.Engine,
		logger:    logger,
		metrics:   cfg.Metrics,
		health:    cfg.Health,
		ws:        &workspace{graphs: make(map[uuid.UUID]*graph.Graph)},
	}
}

// workspace — открытые для редактирования графы.
//
// Правки и синхронные runs работают с одним экземпляром *graph.Graph,
// поэтому блокировка run распространяется на конкурентные правки.
type workspace struct {
	mu     sync.Mutex
	graphs map[uuid.UUID]*graph.Graph
}

// open возвращает открытый граф, при необходимости восстанавливая его из документа.
func (h *Handler) open(ctx context.Context, id uuid.UUID) (*graph.Graph, error) {
	h.ws.mu.Lock()
	defer h.ws.mu.Unlock()

	if g, ok := h.ws.graphs[id]; ok {
		return g, nil
	}

	stored, err := h.graphs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := graph.Load(h.registry, stored.Document)
	if err != nil {
		return nil, err
	}
	h.ws.graphs[id] = g
	return g, nil
}

func (h *Handler) remember(id uuid.UUID, g *graph.Graph) {
	h.ws.mu.Lock()
	h.ws.graphs[id] = g
	h.ws.mu.Unlock()
}

func (h *Handler) forget(id uuid.UUID) {
	h.ws.mu.Lock()
	delete(h.ws.graphs, id)
	h.ws.mu.Unlock()
}
