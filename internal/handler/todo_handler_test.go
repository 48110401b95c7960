package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

type fakeTodoSrv struct {
	owner     string
	createReq models.CreateTodoRequest
	deleteErr error
}

func (f *fakeTodoSrv) List(_ context.Context, userID string) ([]models.TodoItem, error) {
	f.owner = userID
	return []models.TodoItem{}, nil
}

func (f *fakeTodoSrv) Create(_ context.Context, userID string, req models.CreateTodoRequest) (*models.TodoItem, error) {
	f.owner, f.createReq = userID, req
	return &models.TodoItem{ID: "t-1", Title: req.Title, Priority: models.PriorityMedium, Status: models.TodoPending}, nil
}

func (f *fakeTodoSrv) Update(_ context.Context, userID, _ string, _ models.UpdateTodoRequest) (*models.TodoItem, error) {
	f.owner = userID
	return &models.TodoItem{}, nil
}

func (f *fakeTodoSrv) Delete(_ context.Context, userID, _ string) error {
	f.owner = userID
	return f.deleteErr
}

func (f *fakeTodoSrv) Toggle(_ context.Context, userID, _ string) (*models.TodoItem, error) {
	f.owner = userID
	return &models.TodoItem{Status: models.TodoCompleted}, nil
}

func TestTodoHandlerCreateScopesToCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeTodoSrv{}
	handler := NewTodoHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/staff/todos", strings.NewReader(`{"title":"Review applications","due_date":"2026-11-01"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	withUser(c, "staff-1", models.RoleStaff)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "staff-1", srv.owner)
	assert.Equal(t, "Review applications", srv.createReq.Title)
	assert.Equal(t, "2026-11-01", srv.createReq.DueDate)
}

func TestTodoHandlerDeleteNoContent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeTodoSrv{}
	handler := NewTodoHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/staff/todos/t-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	withUser(c, "staff-1", models.RoleStaff)

	handler.Delete(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
}

func TestTodoHandlerDeleteOtherUsersItem(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTodoHandler(&fakeTodoSrv{deleteErr: appErrors.Clone(appErrors.ErrNotFound, "To-do item not found")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/staff/todos/t-2", nil)
	withUser(c, "staff-1", models.RoleStaff)

	handler.Delete(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTodoHandlerListRequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeTodoSrv{}
	handler := NewTodoHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/staff/todos", nil)

	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, srv.owner)
}
