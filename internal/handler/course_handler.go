package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/zyu-enrollment-api/internal/middleware"
	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
	"github.com/noah-isme/zyu-enrollment-api/pkg/response"
)

type courseService interface {
	Catalog(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithSubjects, bool, error)
	Get(ctx context.Context, id string) (*models.CourseSummary, error)
	Subjects(ctx context.Context, id string) (*models.CourseSubjectList, error)
	ListAll(ctx context.Context) ([]models.CourseWithSubjects, error)
	Create(ctx context.Context, req models.UpsertCourseRequest) (*models.Course, error)
	Update(ctx context.Context, id string, req models.UpsertCourseRequest) (*models.Course, error)
	SetStatus(ctx context.Context, id string, req models.SetStatusRequest) error
	AddSubject(ctx context.Context, courseID string, req models.CourseSubjectRequest) error
	RemoveSubject(ctx context.Context, courseID, subjectID string) error
	Popular(ctx context.Context, limit int) ([]models.PopularCourse, bool, error)
	Stats(ctx context.Context) (*models.CourseStats, error)
}

// CourseHandler exposes the public catalogue and staff course management.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(svc courseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// Catalog godoc
// @Summary Browse available courses
// @Tags Courses
// @Produce json
// @Param name query string false "Name contains"
// @Param category query string false "DIPLOMA, DEGREE or MASTER"
// @Param min_duration query int false "Minimum hours"
// @Param max_duration query int false "Maximum hours"
// @Param min_price query number false "Minimum price"
// @Param max_price query number false "Maximum price"
// @Param price_sort query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) Catalog(c *gin.Context) {
	var filter models.CourseFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course filter"))
		return
	}
	courses, hit, err := h.service.Catalog(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	respondWithMeta(c, courses)
}

// Popular godoc
// @Summary Most enrolled courses
// @Tags Courses
// @Produce json
// @Param limit query int false "How many (default 6)"
// @Success 200 {object} response.Envelope
// @Router /courses/popular [get]
func (h *CourseHandler) Popular(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	popular, hit, err := h.service.Popular(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	respondWithMeta(c, popular)
}

// Get godoc
// @Summary Look up one course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Subjects godoc
// @Summary Subjects of a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/subjects [get]
func (h *CourseHandler) Subjects(c *gin.Context) {
	list, err := h.service.Subjects(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// ListAll godoc
// @Summary All courses for staff
// @Tags Staff Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/courses [get]
func (h *CourseHandler) ListAll(c *gin.Context) {
	courses, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Create godoc
// @Summary Create a course
// @Tags Staff Courses
// @Accept json
// @Produce json
// @Param payload body models.UpsertCourseRequest true "Course"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req models.UpsertCourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, "Course created successfully", course)
}

// Update godoc
// @Summary Update a course
// @Tags Staff Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.UpsertCourseRequest true "Course"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var req models.UpsertCourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Course updated successfully", course)
}

// SetStatus godoc
// @Summary Make a course available or unavailable
// @Tags Staff Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.SetStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/courses/{id}/status [patch]
func (h *CourseHandler) SetStatus(c *gin.Context) {
	var req models.SetStatusRequest
	if !bindJSON(c, &req, "invalid status") {
		return
	}
	if err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Course status updated", nil)
}

// AddSubject godoc
// @Summary Assign a subject to a course
// @Tags Staff Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.CourseSubjectRequest true "Subject"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/courses/{id}/subjects [post]
func (h *CourseHandler) AddSubject(c *gin.Context) {
	var req models.CourseSubjectRequest
	if !bindJSON(c, &req, "Subject id is required") {
		return
	}
	if err := h.service.AddSubject(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Subject added successfully", nil)
}

// RemoveSubject godoc
// @Summary Unassign a subject from a course
// @Tags Staff Courses
// @Produce json
// @Param id path string true "Course ID"
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/courses/{id}/subjects/{subjectId} [delete]
func (h *CourseHandler) RemoveSubject(c *gin.Context) {
	if err := h.service.RemoveSubject(c.Request.Context(), c.Param("id"), c.Param("subjectId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Subject removed successfully", nil)
}

// Stats godoc
// @Summary Catalogue statistics
// @Tags Staff Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/courses/stats [get]
func (h *CourseHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
