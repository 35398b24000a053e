package report

import (
	"time"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// NodeEvent — изменение статуса узла во время run.
type NodeEvent struct {
	RunID    string            `json:"run_id"`
	GraphID  string            `json:"graph_id"`
	NodeID   string            `json:"node_id"`
	NodeType string            `json:"node_type"`
	Status   domain.NodeStatus `json:"status"`

	// Error заполняется для failed, причина пропуска — для skipped.
	Error string `json:"error,omitempty"`

	// Duration — время работы executor'а (для done и failed).
	Duration time.Duration `json:"duration_ns,omitempty"`

	Time time.Time `json:"time"`
}
