package graph

import (
	"fmt"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Коды нарушений структуры графа.
const (
	ViolationMissingStart     = "missing_start"
	ViolationMultipleStart    = "multiple_start"
	ViolationMissingEnd       = "missing_end"
	ViolationStartHasIncoming = "start_has_incoming"
	ViolationEndHasOutgoing   = "end_has_outgoing"
	ViolationOrphanInput      = "orphan_required_input"
)

// Violation — одно структурное нарушение.
type Violation struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	Port    string `json:"port,omitempty"`
	Message string `json:"message"`
}

// String возвращает человекочитаемое описание.
func (v Violation) String() string {
	if v.NodeID != "" {
		return "node " + v.NodeID + ": " + v.Message
	}
	return v.Message
}

// Validate собирает все нарушения снимка, не останавливаясь на первом.
//
// Проверки: ровно один Start без входящих control-связей, хотя бы один End
// без исходящих control-связей, обязательные входы связаны или заданы
// одноимённым свойством.
func (s *Snapshot) Validate() []Violation {
	var violations []Violation

	starts := s.NodesOfType(domain.NodeTypeStart)
	switch {
	case len(starts) == 0:
		violations = append(violations, Violation{
			Code:    ViolationMissingStart,
			Message: "graph has no Start node",
		})
	case len(starts) > 1:
		for _, n := range starts[1:] {
			violations = append(violations, Violation{
				Code:    ViolationMultipleStart,
				NodeID:  n.ID,
				Message: fmt.Sprintf("graph has %d Start nodes, expected exactly one", len(starts)),
			})
		}
	}
	for _, n := range starts {
		for _, l := range s.InLinks(n.ID) {
			if l.Type.IsControl() {
				violations = append(violations, Violation{
					Code:    ViolationStartHasIncoming,
					NodeID:  n.ID,
					Port:    l.ToPort,
					Message: "Start node has incoming control link from " + l.From,
				})
			}
		}
	}

	ends := s.NodesOfType(domain.NodeTypeEnd)
	if len(ends) == 0 {
		violations = append(violations, Violation{
			Code:    ViolationMissingEnd,
			Message: "graph has no End node",
		})
	}
	for _, n := range ends {
		for _, l := range s.OutLinks(n.ID) {
			if l.Type.IsControl() {
				violations = append(violations, Violation{
					Code:    ViolationEndHasOutgoing,
					NodeID:  n.ID,
					Port:    l.FromPort,
					Message: "End node has outgoing control link to " + l.To,
				})
			}
		}
	}

	for _, n := range s.Nodes {
		for _, p := range n.Inputs {
			if !p.Required || s.InputLink(n.ID, p.Name) != nil {
				continue
			}
			if v, ok := n.Properties[p.Name]; ok && !isBlank(v) {
				continue
			}
			violations = append(violations, Violation{
				Code:    ViolationOrphanInput,
				NodeID:  n.ID,
				Port:    p.Name,
				Message: fmt.Sprintf("required input %q is not linked and has no property value", p.Name),
			})
		}
	}

	return violations
}
