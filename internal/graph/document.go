package graph

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Nodeflow/internal/registry"
)

// Document — сериализованная форма графа.
//
//	{
//	  "name": "copy file",
//	  "nodes": [{"id": "start", "type": "core/Start"}, ...],
//	  "links": [{"from": "start", "from_port": "next", "to": "read", "to_port": "in"}, ...]
//	}
type Document struct {
	ID    string    `json:"id,omitempty"`
	Name  string    `json:"name,omitempty"`
	Nodes []NodeDoc `json:"nodes"`
	Links []LinkDoc `json:"links"`
}

// NodeDoc — узел в документе.
type NodeDoc struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// LinkDoc — связь в документе.
type LinkDoc struct {
	From     string `json:"from"`
	FromPort string `json:"from_port"`
	To       string `json:"to"`
	ToPort   string `json:"to_port"`
}

// Export возвращает документ графа.
func (g *Graph) Export() *Document {
	return g.Snapshot().Document()
}

// Document возвращает документ снимка.
func (s *Snapshot) Document() *Document {
	doc := &Document{
		ID:    s.GraphID,
		Name:  s.Name,
		Nodes: make([]NodeDoc, 0, len(s.Nodes)),
		Links: make([]LinkDoc, 0, len(s.Links)),
	}
	for _, n := range s.Nodes {
		doc.Nodes = append(doc.Nodes, NodeDoc{
			ID:         n.ID,
			Type:       n.Type,
			Properties: copyProperties(n.Properties),
		})
	}
	for _, l := range s.Links {
		doc.Links = append(doc.Links, LinkDoc{
			From:     l.From,
			FromPort: l.FromPort,
			To:       l.To,
			ToPort:   l.ToPort,
		})
	}
	return doc
}

// Import строит граф из документа, повторяя AddNodeWithID и AddLink.
// Все структурные проверки правок применяются и к сохранённым графам.
func Import(reg *registry.Registry, doc *Document) (*Graph, error) {
	g := New(reg)
	if doc.ID != "" {
		g.id = doc.ID
	}
	g.name = doc.Name

	for i, n := range doc.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("nodes[%d]: %w", i, editError("", "", "node has empty id", ErrInvalidProperty))
		}
		if _, err := g.AddNodeWithID(n.ID, n.Type, n.Properties); err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
	}

	for i, l := range doc.Links {
		if _, err := g.AddLink(l.From, l.FromPort, l.To, l.ToPort); err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
	}

	return g, nil
}

// ParseDocument разбирает JSON документ.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse graph document: %w", err)
	}
	return &doc, nil
}

// Load разбирает JSON документ и строит граф.
func Load(reg *registry.Registry, data []byte) (*Graph, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return Import(reg, doc)
}

// MarshalJSON сериализует граф как документ.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Export())
}
