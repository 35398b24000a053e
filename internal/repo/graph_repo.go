package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// GraphRepo — хранилище документов графов.
type GraphRepo struct {
	pool *pgxpool.Pool
}

// NewGraphRepo создаёт GraphRepo.
func NewGraphRepo(pool *pgxpool.Pool) *GraphRepo {
	return &GraphRepo{pool: pool}
}

// Create сохраняет новый граф.
func (r *GraphRepo) Create(ctx context.Context, g *domain.StoredGraph) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO graphs (id, name, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, g.ID, g.Name, []byte(g.Document), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert graph: %w", err)
	}
	return nil
}

// Get возвращает граф по ID.
func (r *GraphRepo) Get(ctx context.Context, id uuid.UUID) (*domain.StoredGraph, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, document, created_at, updated_at
		FROM graphs
		WHERE id = $1
	`, id)

	g, err := scanGraph(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get graph: %w", err)
	}
	return g, nil
}

// List возвращает графы, новые первыми. Документы не загружаются.
func (r *GraphRepo) List(ctx context.Context, limit, offset int) ([]domain.StoredGraph, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM graphs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	defer rows.Close()

	var graphs []domain.StoredGraph
	for rows.Next() {
		var g domain.StoredGraph
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan graph: %w", err)
		}
		graphs = append(graphs, g)
	}
	return graphs, rows.Err()
}

// Update перезаписывает имя и документ графа.
func (r *GraphRepo) Update(ctx context.Context, g *domain.StoredGraph) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE graphs
		SET name = $2, document = $3, updated_at = $4
		WHERE id = $1
	`, g.ID, g.Name, []byte(g.Document), g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update graph: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет граф (каскадно удалит runs и schedule).
func (r *GraphRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM graphs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete graph: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanGraph(row pgx.Row) (*domain.StoredGraph, error) {
	var g domain.StoredGraph
	var doc []byte
	if err := row.Scan(&g.ID, &g.Name, &doc, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Document = doc
	return &g, nil
}
