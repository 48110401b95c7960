package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/pkg/response"
)

type eventService interface {
	List(ctx context.Context, from, to string) ([]models.CompanyEvent, error)
	Create(ctx context.Context, req models.CreateEventRequest) (*models.CompanyEvent, error)
	Delete(ctx context.Context, id string) error
}

// EventHandler manages the staff calendar.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs the handler.
func NewEventHandler(svc eventService) *EventHandler {
	return &EventHandler{service: svc}
}

// List godoc
// @Summary Company events
// @Tags Staff Events
// @Produce json
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/events [get]
func (h *EventHandler) List(c *gin.Context) {
	events, err := h.service.List(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Create godoc
// @Summary Add a company event
// @Tags Staff Events
// @Accept json
// @Produce json
// @Param payload body models.CreateEventRequest true "Event"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req models.CreateEventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}
	event, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, "Event created successfully", event)
}

// Delete godoc
// @Summary Remove a company event
// @Tags Staff Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Event deleted successfully", nil)
}
