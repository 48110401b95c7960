package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

const todoID = "c2a1f6a0-4a55-4d8e-9f7b-0a1b2c3d4e5f"

type mockTodoRepo struct {
	items   map[string]models.TodoItem
	updated *models.TodoItem
}

func (m *mockTodoRepo) ListByUser(ctx context.Context, userID string) ([]models.TodoItem, error) {
	var out []models.TodoItem
	for _, item := range m.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockTodoRepo) FindByID(ctx context.Context, id, userID string) (*models.TodoItem, error) {
	item, ok := m.items[id]
	if !ok || item.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (m *mockTodoRepo) Create(ctx context.Context, item *models.TodoItem) error {
	item.ID = todoID
	m.items[item.ID] = *item
	return nil
}

func (m *mockTodoRepo) Update(ctx context.Context, item *models.TodoItem) error {
	m.updated = item
	m.items[item.ID] = *item
	return nil
}

func (m *mockTodoRepo) Delete(ctx context.Context, id, userID string) error {
	if _, err := m.FindByID(ctx, id, userID); err != nil {
		return err
	}
	delete(m.items, id)
	return nil
}

func (m *mockTodoRepo) Toggle(ctx context.Context, id, userID string) (*models.TodoItem, error) {
	item, err := m.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if item.Status == models.TodoCompleted {
		item.Status = models.TodoPending
	} else {
		item.Status = models.TodoCompleted
	}
	m.items[id] = *item
	return item, nil
}

func newTodoFixture() (*TodoService, *mockTodoRepo) {
	repo := &mockTodoRepo{items: map[string]models.TodoItem{}}
	return NewTodoService(repo, nil, nil), repo
}

func TestCreateTodoDefaults(t *testing.T) {
	svc, _ := newTodoFixture()

	item, err := svc.Create(context.Background(), "staff-1", models.CreateTodoRequest{Title: " Review applications ", DueDate: "2024-06-01"})
	require.NoError(t, err)
	assert.Equal(t, "Review applications", item.Title)
	assert.Equal(t, models.PriorityMedium, item.Priority)
	assert.Equal(t, models.TodoPending, item.Status)
	require.NotNil(t, item.DueDate)
	assert.Equal(t, "2024-06-01", item.DueDate.Format(dateLayout))
	assert.Nil(t, item.Description)

	_, err = svc.Create(context.Background(), "staff-1", models.CreateTodoRequest{Title: "x", Priority: "URGENT"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), "staff-1", models.CreateTodoRequest{Title: "  "})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUpdateTodoClearsDueDate(t *testing.T) {
	svc, repo := newTodoFixture()
	item, err := svc.Create(context.Background(), "staff-1", models.CreateTodoRequest{Title: "Plan", DueDate: "2024-06-01"})
	require.NoError(t, err)

	empty := ""
	high := models.PriorityHigh
	updated, err := svc.Update(context.Background(), "staff-1", item.ID, models.UpdateTodoRequest{DueDate: &empty, Priority: &high, Title: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, models.PriorityHigh, updated.Priority)
	assert.Equal(t, "Plan", updated.Title)
	assert.Same(t, updated, repo.updated)
}

func TestTodoOwnerScoping(t *testing.T) {
	svc, _ := newTodoFixture()
	item, err := svc.Create(context.Background(), "staff-1", models.CreateTodoRequest{Title: "Private"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Update(ctx, "staff-2", item.ID, models.UpdateTodoRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = svc.Toggle(ctx, "staff-2", item.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "staff-2", item.ID), appErrors.ErrNotFound)

	others, err := svc.List(ctx, "staff-2")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestToggleTodo(t *testing.T) {
	svc, _ := newTodoFixture()
	item, err := svc.Create(context.Background(), "staff-1", models.CreateTodoRequest{Title: "Flip"})
	require.NoError(t, err)

	toggled, err := svc.Toggle(context.Background(), "staff-1", item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TodoCompleted, toggled.Status)

	toggled, err = svc.Toggle(context.Background(), "staff-1", item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TodoPending, toggled.Status)
}
