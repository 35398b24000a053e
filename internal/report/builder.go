package report

import (
	"sync"
	"time"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Builder собирает отчёт во время run.
// Build возвращает независимую копию, дальнейшие изменения Builder на неё не влияют.
type Builder struct {
	mu      sync.Mutex
	report  Report
	started time.Time
}

// NodeRef — узел, попадающий в отчёт.
type NodeRef struct {
	ID   string
	Type string
}

// NewBuilder создаёт builder; все узлы начинают в состоянии pending.
func NewBuilder(runID, graphID string, nodes []NodeRef) *Builder {
	b := &Builder{
		report: Report{
			RunID:   runID,
			GraphID: graphID,
			Status:  domain.RunStatusRunning,
			Nodes:   make([]NodeResult, 0, len(nodes)),
		},
		started: time.Now(),
	}
	for _, n := range nodes {
		b.report.Nodes = append(b.report.Nodes, NodeResult{
			NodeID: n.ID,
			Type:   n.Type,
			Status: domain.NodeStatusPending,
		})
	}
	b.report.StartedAt = b.started
	b.report.buildIndex()
	return b
}

// SetStatus меняет статус узла.
func (b *Builder) SetStatus(id string, status domain.NodeStatus) {
	b.update(id, func(r *NodeResult) {
		r.Status = status
	})
}

// Done фиксирует успешное выполнение.
func (b *Builder) Done(id string, outputs map[string]any, branch string, d time.Duration) {
	b.update(id, func(r *NodeResult) {
		r.Status = domain.NodeStatusDone
		r.Outputs = cloneOutputs(outputs)
		r.Branch = branch
		r.Duration = d
	})
	b.appendOrder(id)
}

// Fail фиксирует ошибку узла. outputs содержит значение error-порта.
func (b *Builder) Fail(id string, errMsg string, outputs map[string]any, d time.Duration) {
	b.update(id, func(r *NodeResult) {
		r.Status = domain.NodeStatusFailed
		r.Error = errMsg
		r.Outputs = cloneOutputs(outputs)
		r.Duration = d
	})
	b.appendOrder(id)
}

// Skip помечает узел пропущенным.
func (b *Builder) Skip(id, reason string) {
	b.update(id, func(r *NodeResult) {
		r.Status = domain.NodeStatusSkipped
		r.Reason = reason
	})
}

func (b *Builder) update(id string, fn func(r *NodeResult)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i, ok := b.report.index[id]; ok {
		fn(&b.report.Nodes[i])
	}
}

func (b *Builder) appendOrder(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Order = append(b.report.Order, id)
}

// Build завершает отчёт и возвращает его копию.
func (b *Builder) Build(status domain.RunStatus, cancelled bool) *Report {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := Report{
		RunID:      b.report.RunID,
		GraphID:    b.report.GraphID,
		Status:     status,
		Cancelled:  cancelled,
		Order:      append([]string{}, b.report.Order...),
		Nodes:      make([]NodeResult, len(b.report.Nodes)),
		StartedAt:  b.started,
		FinishedAt: time.Now(),
	}
	for i, n := range b.report.Nodes {
		n.Outputs = cloneOutputs(n.Outputs)
		r.Nodes[i] = n
	}
	r.buildIndex()
	return &r
}
