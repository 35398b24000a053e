package report

import (
	"encoding/json"
	"time"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// NodeResult — итог одного узла.
type NodeResult struct {
	NodeID  string            `json:"node_id"`
	Type    string            `json:"type"`
	Status  domain.NodeStatus `json:"status"`
	Outputs map[string]any    `json:"outputs,omitempty"`
	Error   string            `json:"error,omitempty"`

	// Branch — выбранная ветка Condition.
	Branch string `json:"branch,omitempty"`

	// Reason — почему узел пропущен.
	Reason string `json:"reason,omitempty"`

	// Duration — время работы executor'а.
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// Summary — сводка по статусам узлов.
type Summary struct {
	TotalNodes int `json:"total_nodes"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Report — результат одного run.
type Report struct {
	RunID     string           `json:"run_id"`
	GraphID   string           `json:"graph_id"`
	Status    domain.RunStatus `json:"status"`
	Cancelled bool             `json:"cancelled,omitempty"`

	// Order — порядок, в котором узлы выполнялись.
	Order []string `json:"order"`

	// Nodes — результаты всех узлов в порядке добавления в граф.
	Nodes []NodeResult `json:"nodes"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	index map[string]int
}

// ForNode возвращает копию результата узла.
func (r *Report) ForNode(id string) (NodeResult, bool) {
	i, ok := r.lookup(id)
	if !ok {
		return NodeResult{}, false
	}
	res := r.Nodes[i]
	res.Outputs = cloneOutputs(res.Outputs)
	return res, true
}

// NodeStatus возвращает статус узла ("" если узла нет в отчёте).
func (r *Report) NodeStatus(id string) domain.NodeStatus {
	i, ok := r.lookup(id)
	if !ok {
		return ""
	}
	return r.Nodes[i].Status
}

func (r *Report) lookup(id string) (int, bool) {
	if r.index != nil {
		i, ok := r.index[id]
		return i, ok
	}
	for i, n := range r.Nodes {
		if n.NodeID == id {
			return i, true
		}
	}
	return 0, false
}

func (r *Report) buildIndex() {
	r.index = make(map[string]int, len(r.Nodes))
	for i, n := range r.Nodes {
		r.index[n.NodeID] = i
	}
}

// Summary подсчитывает узлы по статусам.
func (r *Report) Summary() Summary {
	s := Summary{TotalNodes: len(r.Nodes)}
	for _, n := range r.Nodes {
		switch n.Status {
		case domain.NodeStatusDone:
			s.Done++
		case domain.NodeStatusFailed:
			s.Failed++
		case domain.NodeStatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// Duration возвращает длительность run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed возвращает ID узлов со статусом failed.
func (r *Report) Failed() []string {
	var ids []string
	for _, n := range r.Nodes {
		if n.Status == domain.NodeStatusFailed {
			ids = append(ids, n.NodeID)
		}
	}
	return ids
}

// MarshalJSON добавляет summary в JSON представление.
func (r *Report) MarshalJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(struct {
		*alias
		Summary Summary `json:"summary"`
	}{
		alias:   (*alias)(r),
		Summary: r.Summary(),
	})
}

// Parse разбирает отчёт из JSON.
func Parse(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	r.buildIndex()
	return &r, nil
}
