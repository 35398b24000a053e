package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/registry"
)

// Graph DTOs

// CreateGraphRequest — запрос на создание графа.
// Document — необязательный исходный документ (импорт).
type CreateGraphRequest struct {
	Name     string          `json:"name"`
	Document *graph.Document `json:"document,omitempty"`
}

// GraphResponse — ответ с графом.
type GraphResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Document  json.RawMessage `json:"document,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GraphFromDomain конвертирует domain.StoredGraph в GraphResponse.
// withDocument=false — краткая форма для списка.
func GraphFromDomain(g *domain.StoredGraph, withDocument bool) GraphResponse {
	resp := GraphResponse{
		ID:        g.ID,
		Name:      g.Name,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	if withDocument {
		resp.Document = g.Document
	}
	return resp
}

// AddNodeRequest — запрос на добавление узла.
type AddNodeRequest struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// AddLinkRequest — запрос на добавление связи.
type AddLinkRequest struct {
	From     string `json:"from"`
	FromPort string `json:"from_port"`
	To       string `json:"to"`
	ToPort   string `json:"to_port"`
}

// LinkResponse — созданная связь.
type LinkResponse struct {
	ID string `json:"id"`
	AddLinkRequest
}

// ValidateResponse — результат проверки графа.
type ValidateResponse struct {
	Valid      bool              `json:"valid"`
	Violations []graph.Violation `json:"violations"`
}

// Run DTOs

// CreateRunRequest — запрос на запуск графа.
type CreateRunRequest struct {
	Inputs map[string]any `json:"inputs,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID         uuid.UUID       `json:"id"`
	GraphID    uuid.UUID       `json:"graph_id"`
	Status     string          `json:"status"`
	Inputs     map[string]any  `json:"inputs,omitempty"`
	Report     json.RawMessage `json:"report,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r *domain.Run) RunResponse {
	return RunResponse{
		ID:         r.ID,
		GraphID:    r.GraphID,
		Status:     string(r.Status),
		Inputs:     r.Inputs,
		Report:     r.Report,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		CreatedAt:  r.CreatedAt,
	}
}

// Node type DTOs

// NodeTypeResponse — описание зарегистрированного типа узла.
type NodeTypeResponse struct {
	Name       string                  `json:"name"`
	Title      string                  `json:"title,omitempty"`
	Class      domain.SideEffectClass  `json:"class"`
	Inputs     []registry.PortSpec     `json:"inputs"`
	Outputs    []registry.PortSpec     `json:"outputs"`
	Properties []registry.PropertySpec `json:"properties,omitempty"`
	Dynamic    bool                    `json:"dynamic_outputs,omitempty"`
	Branching  bool                    `json:"branching,omitempty"`
}

// NodeTypeFromRegistry конвертирует registry.NodeType в NodeTypeResponse.
func NodeTypeFromRegistry(t *registry.NodeType) NodeTypeResponse {
	return NodeTypeResponse{
		Name:       t.Name,
		Title:      t.Title,
		Class:      t.Class,
		Inputs:     t.Inputs,
		Outputs:    t.Outputs,
		Properties: t.Properties,
		Dynamic:    t.DynamicOutputs != nil,
		Branching:  t.Branching,
	}
}
