package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

type todoRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.TodoItem, error)
	FindByID(ctx context.Context, id, userID string) (*models.TodoItem, error)
	Create(ctx context.Context, item *models.TodoItem) error
	Update(ctx context.Context, item *models.TodoItem) error
	Delete(ctx context.Context, id, userID string) error
	Toggle(ctx context.Context, id, userID string) (*models.TodoItem, error)
}

// TodoService manages personal to-do lists. Every call is scoped to the owner; other
// users' items are reported as not found.
type TodoService struct {
	repo      todoRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTodoService constructs a TodoService.
func NewTodoService(repo todoRepository, validate *validator.Validate, logger *zap.Logger) *TodoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TodoService{repo: repo, validator: ensureValidator(validate), logger: logger}
}

// List returns the owner's items in working order.
func (s *TodoService) List(ctx context.Context, userID string) ([]models.TodoItem, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, internalError(err, "failed to list to-do items")
	}
	if items == nil {
		items = []models.TodoItem{}
	}
	return items, nil
}

// Create adds a PENDING item. Priority defaults to MEDIUM.
func (s *TodoService) Create(ctx context.Context, userID string, req models.CreateTodoRequest) (*models.TodoItem, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "Title is required")
	}
	item := &models.TodoItem{
		UserID:      userID,
		Title:       req.Title,
		Description: optionalText(req.Description),
		Priority:    req.Priority,
		Status:      models.TodoPending,
	}
	if item.Priority == "" {
		item.Priority = models.PriorityMedium
	}
	due, err := parseOptionalDate(req.DueDate, "due_date")
	if err != nil {
		return nil, err
	}
	item.DueDate = due

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, internalError(err, "failed to create to-do item")
	}
	return item, nil
}

// Update applies the fields present in req. An empty due date clears it.
func (s *TodoService) Update(ctx context.Context, userID, id string, req models.UpdateTodoRequest) (*models.TodoItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid to-do payload")
	}
	item, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if title := strings.TrimSpace(*req.Title); title != "" {
			item.Title = title
		}
	}
	if req.Description != nil {
		item.Description = optionalText(*req.Description)
	}
	if req.DueDate != nil {
		due, err := parseOptionalDate(*req.DueDate, "due_date")
		if err != nil {
			return nil, err
		}
		item.DueDate = due
	}
	if req.Priority != nil && *req.Priority != "" {
		item.Priority = *req.Priority
	}
	if req.Status != nil && *req.Status != "" {
		item.Status = *req.Status
	}

	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, todoNotFound()
		}
		return nil, internalError(err, "failed to update to-do item")
	}
	return item, nil
}

// Delete removes the owner's item.
func (s *TodoService) Delete(ctx context.Context, userID, id string) error {
	if _, err := parseID(id, "Invalid to-do id"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return todoNotFound()
		}
		return internalError(err, "failed to delete to-do item")
	}
	return nil
}

// Toggle flips an item between COMPLETED and PENDING.
func (s *TodoService) Toggle(ctx context.Context, userID, id string) (*models.TodoItem, error) {
	if _, err := parseID(id, "Invalid to-do id"); err != nil {
		return nil, err
	}
	item, err := s.repo.Toggle(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, todoNotFound()
		}
		return nil, internalError(err, "failed to toggle to-do item")
	}
	return item, nil
}

func (s *TodoService) find(ctx context.Context, userID, id string) (*models.TodoItem, error) {
	if _, err := parseID(id, "Invalid to-do id"); err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, todoNotFound()
		}
		return nil, internalError(err, "failed to load to-do item")
	}
	return item, nil
}

func todoNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "To-do item not found")
}

func optionalText(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

