package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/pkg/response"
)

type subjectService interface {
	List(ctx context.Context) ([]models.SubjectWithCourses, error)
	ListAvailable(ctx context.Context) ([]models.Subject, error)
	Create(ctx context.Context, req models.UpsertSubjectRequest) (*models.Subject, error)
	Update(ctx context.Context, id string, req models.UpsertSubjectRequest) (*models.Subject, error)
	SetStatus(ctx context.Context, id string, req models.SetStatusRequest) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.SubjectStats, error)
}

// SubjectHandler exposes staff subject management.
type SubjectHandler struct {
	service subjectService
}

// NewSubjectHandler constructs the handler.
func NewSubjectHandler(svc subjectService) *SubjectHandler {
	return &SubjectHandler{service: svc}
}

// List godoc
// @Summary Subjects with the courses using them
// @Tags Staff Subjects
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	subjects, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// ListAvailable godoc
// @Summary Subjects that can be assigned
// @Tags Staff Subjects
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/subjects/available [get]
func (h *SubjectHandler) ListAvailable(c *gin.Context) {
	subjects, err := h.service.ListAvailable(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// Create godoc
// @Summary Create a subject
// @Tags Staff Subjects
// @Accept json
// @Produce json
// @Param payload body models.UpsertSubjectRequest true "Subject"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	var req models.UpsertSubjectRequest
	if !bindJSON(c, &req, "invalid subject payload") {
		return
	}
	subject, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, "Subject created successfully", subject)
}

// Update godoc
// @Summary Update a subject
// @Tags Staff Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body models.UpsertSubjectRequest true "Subject"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/subjects/{id} [put]
func (h *SubjectHandler) Update(c *gin.Context) {
	var req models.UpsertSubjectRequest
	if !bindJSON(c, &req, "invalid subject payload") {
		return
	}
	subject, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Subject updated successfully", subject)
}

// SetStatus godoc
// @Summary Make a subject available or unavailable
// @Tags Staff Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body models.SetStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/subjects/{id}/status [patch]
func (h *SubjectHandler) SetStatus(c *gin.Context) {
	var req models.SetStatusRequest
	if !bindJSON(c, &req, "invalid status") {
		return
	}
	if err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Subject status updated", nil)
}

// Delete godoc
// @Summary Delete an unused subject
// @Tags Staff Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/subjects/{id} [delete]
func (h *SubjectHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Subject deleted successfully", nil)
}

// Stats godoc
// @Summary Subject usage statistics
// @Tags Staff Subjects
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/subjects/stats [get]
func (h *SubjectHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
