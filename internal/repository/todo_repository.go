package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
)

const todoColumns = `id, user_id, title, description, due_date, priority, status, created_at, updated_at`

// TodoRepository persists personal to-do items. Every method is scoped by owner.
type TodoRepository struct {
	db *sqlx.DB
}

// NewTodoRepository constructs the repository.
func NewTodoRepository(db *sqlx.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

// ListByUser returns the owner's items: open work first, earliest due date first (undated
// last), then highest priority.
func (r *TodoRepository) ListByUser(ctx context.Context, userID string) ([]models.TodoItem, error) {
	query := `SELECT ` + todoColumns + ` FROM todo_items WHERE user_id = $1
ORDER BY CASE status WHEN 'PENDING' THEN 0 WHEN 'IN_PROGRESS' THEN 1 ELSE 2 END,
         due_date ASC NULLS LAST,
         CASE priority WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END,
         created_at ASC`
	var items []models.TodoItem
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list todo items: %w", err)
	}
	return items, nil
}

// FindByID returns the owner's item. Another user's item is reported as sql.ErrNoRows.
func (r *TodoRepository) FindByID(ctx context.Context, id, userID string) (*models.TodoItem, error) {
	query := `SELECT ` + todoColumns + ` FROM todo_items WHERE id = $1 AND user_id = $2`
	var item models.TodoItem
	if err := r.db.GetContext(ctx, &item, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find todo item: %w", err)
	}
	return &item, nil
}

// Create inserts an item.
func (r *TodoRepository) Create(ctx context.Context, item *models.TodoItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	const query = `INSERT INTO todo_items (id, user_id, title, description, due_date, priority, status, created_at, updated_at)
VALUES (:id, :user_id, :title, :description, :due_date, :priority, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create todo item: %w", err)
	}
	return nil
}

// Update writes every mutable field of the owner's item.
func (r *TodoRepository) Update(ctx context.Context, item *models.TodoItem) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE todo_items SET title = :title, description = :description, due_date = :due_date, priority = :priority, status = :status, updated_at = :updated_at
WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update todo item: %w", err)
	}
	return requireAffected(res, "update todo item")
}

// Delete removes the owner's item.
func (r *TodoRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todo_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete todo item: %w", err)
	}
	return requireAffected(res, "delete todo item")
}

// Toggle flips COMPLETED to PENDING and anything else to COMPLETED in one statement.
func (r *TodoRepository) Toggle(ctx context.Context, id, userID string) (*models.TodoItem, error) {
	query := `UPDATE todo_items
SET status = CASE WHEN status = 'COMPLETED' THEN 'PENDING' ELSE 'COMPLETED' END, updated_at = $3
WHERE id = $1 AND user_id = $2
RETURNING ` + todoColumns
	var item models.TodoItem
	if err := r.db.GetContext(ctx, &item, query, id, userID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("toggle todo item: %w", err)
	}
	return &item, nil
}
