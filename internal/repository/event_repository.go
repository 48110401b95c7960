package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
)

// EventRepository persists company events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns events in date order within the optional inclusive bounds.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.CompanyEvent, error) {
	var conditions []string
	var args []interface{}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("event_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("event_date <= $%d", len(args)))
	}
	query := `SELECT id, name, event_date, description, type, created_at FROM company_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY event_date ASC, name ASC`

	var events []models.CompanyEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Create inserts an event.
func (r *EventRepository) Create(ctx context.Context, event *models.CompanyEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO company_events (id, name, event_date, description, type, created_at) VALUES (:id, :name, :event_date, :description, :type, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Delete removes an event. Returns sql.ErrNoRows when it does not exist.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM company_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return requireAffected(res, "delete event")
}
