package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/pkg/response"
)

type todoService interface {
	List(ctx context.Context, userID string) ([]models.TodoItem, error)
	Create(ctx context.Context, userID string, req models.CreateTodoRequest) (*models.TodoItem, error)
	Update(ctx context.Context, userID, id string, req models.UpdateTodoRequest) (*models.TodoItem, error)
	Delete(ctx context.Context, userID, id string) error
	Toggle(ctx context.Context, userID, id string) (*models.TodoItem, error)
}

// TodoHandler serves the caller's personal to-do list. Every operation is scoped to the caller.
type TodoHandler struct {
	service todoService
}

// NewTodoHandler constructs the handler.
func NewTodoHandler(svc todoService) *TodoHandler {
	return &TodoHandler{service: svc}
}

// List godoc
// @Summary Caller's to-do items
// @Tags Staff Todos
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/todos [get]
func (h *TodoHandler) List(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Add a to-do item
// @Tags Staff Todos
// @Accept json
// @Produce json
// @Param payload body models.CreateTodoRequest true "Item"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/todos [post]
func (h *TodoHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.CreateTodoRequest
	if !bindJSON(c, &req, "invalid to-do payload") {
		return
	}
	item, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Edit a to-do item
// @Tags Staff Todos
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body models.UpdateTodoRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/todos/{id} [put]
func (h *TodoHandler) Update(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateTodoRequest
	if !bindJSON(c, &req, "invalid to-do payload") {
		return
	}
	item, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Toggle godoc
// @Summary Flip a to-do item between pending and completed
// @Tags Staff Todos
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/todos/{id}/toggle [patch]
func (h *TodoHandler) Toggle(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	item, err := h.service.Toggle(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Remove a to-do item
// @Tags Staff Todos
// @Param id path string true "Item ID"
// @Success 204
// @Security BearerAuth
// @Router /staff/todos/{id} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
