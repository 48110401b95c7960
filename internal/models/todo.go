package models

import "time"

// TodoPriority ranks to-do items.
type TodoPriority string

const (
	PriorityLow    TodoPriority = "LOW"
	PriorityMedium TodoPriority = "MEDIUM"
	PriorityHigh   TodoPriority = "HIGH"
)

// TodoStatus tracks progress of a to-do item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "PENDING"
	TodoInProgress TodoStatus = "IN_PROGRESS"
	TodoCompleted  TodoStatus = "COMPLETED"
)

// TodoItem is a personal task owned by one user.
type TodoItem struct {
	ID          string       `db:"id" json:"id"`
	UserID      string       `db:"user_id" json:"-"`
	Title       string       `db:"title" json:"title"`
	Description *string      `db:"description" json:"description"`
	DueDate     *time.Time   `db:"due_date" json:"due_date"`
	Priority    TodoPriority `db:"priority" json:"priority"`
	Status      TodoStatus   `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// CreateTodoRequest adds an item. DueDate is YYYY-MM-DD.
type CreateTodoRequest struct {
	Title       string       `json:"title" validate:"required,max=255"`
	Description string       `json:"description"`
	DueDate     string       `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Priority    TodoPriority `json:"priority" validate:"omitempty,priority"`
}

// UpdateTodoRequest patches an item. A non-nil empty DueDate clears the date.
type UpdateTodoRequest struct {
	Title       *string       `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string       `json:"description"`
	DueDate     *string       `json:"due_date"`
	Priority    *TodoPriority `json:"priority" validate:"omitempty,priority"`
	Status      *TodoStatus   `json:"status" validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED"`
}
