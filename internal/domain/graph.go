package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StoredGraph — сохранённый граф.
//
// Document — JSON документа графа (graph.Document). Граф хранится
// документом, а не таблицами узлов и связей: при загрузке документ
// проигрывается через AddNode/AddLink, и все структурные проверки
// применяются заново.
type StoredGraph struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Document  json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Touch обновляет UpdatedAt.
func (g *StoredGraph) Touch() {
	g.UpdatedAt = time.Now()
}
