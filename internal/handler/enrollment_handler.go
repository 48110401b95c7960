package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
	"github.com/noah-isme/zyu-enrollment-api/pkg/export"
	"github.com/noah-isme/zyu-enrollment-api/pkg/response"
)

const certificateField = "gradeImage"

type enrollmentService interface {
	Apply(ctx context.Context, studentID, courseID string, cert *models.Certificate) (*models.Enrollment, error)
	MyRecords(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	MyCourses(ctx context.Context, studentID string) ([]models.MyCourse, error)
	Pending(ctx context.Context) ([]models.PendingApplication, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Approve(ctx context.Context, id string) error
	Reject(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.EnrollmentStats, error)
	CertificateURL(ctx context.Context, id string) (*models.CertificateLink, error)
	DownloadCertificate(ctx context.Context, token string) (*os.File, string, error)
}

type enrollmentExporter interface {
	Enrollments(ctx context.Context, format export.Format, status models.EnrollmentStatus) (*service.ExportFile, error)
}

// EnrollmentHandler serves applications for students and their review for staff.
type EnrollmentHandler struct {
	service   enrollmentService
	exporter  enrollmentExporter
	maxUpload int64
}

// NewEnrollmentHandler constructs the handler. maxUpload caps how much of a certificate is read.
func NewEnrollmentHandler(svc enrollmentService, exporter enrollmentExporter, maxUpload int64) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc, exporter: exporter, maxUpload: maxUpload}
}

// Apply godoc
// @Summary Apply to a course
// @Description Uploads a grade certificate image. A disapproved application is resubmitted in place.
// @Tags Enrollments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param gradeImage formData file true "Grade certificate (jpeg, png or gif)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/enroll [post]
func (h *EnrollmentHandler) Apply(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	cert, err := h.readCertificate(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.service.Apply(c.Request.Context(), claims.UserID, c.Param("id"), cert)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, "Application submitted successfully", enrollment)
}

// readCertificate returns nil when the form carries no file so the service reports it.
func (h *EnrollmentHandler) readCertificate(c *gin.Context) (*models.Certificate, error) {
	header, err := c.FormFile(certificateField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload")
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload")
	}
	defer file.Close()

	reader := io.Reader(file)
	if h.maxUpload > 0 {
		reader = io.LimitReader(file, h.maxUpload+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload")
	}
	return &models.Certificate{Filename: header.Filename, Size: header.Size, Data: data}, nil
}

// MyEnrollments godoc
// @Summary Caller's applications
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/enrollments [get]
func (h *EnrollmentHandler) MyEnrollments(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	records, err := h.service.MyRecords(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// MyCourses godoc
// @Summary Caller's approved courses with subjects
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/courses [get]
func (h *EnrollmentHandler) MyCourses(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	courses, err := h.service.MyCourses(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// List godoc
// @Summary List enrollments
// @Tags Staff Enrollments
// @Produce json
// @Param status query string false "PENDING, APPROVED or DISAPPROVED"
// @Param course_id query string false "Course ID"
// @Param student_id query string false "Student ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	records, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Pending godoc
// @Summary Applications awaiting a decision
// @Tags Staff Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/enrollments/pending [get]
func (h *EnrollmentHandler) Pending(c *gin.Context) {
	pending, err := h.service.Pending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// Stats godoc
// @Summary Enrollment counts by status
// @Tags Staff Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/enrollments/stats [get]
func (h *EnrollmentHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Approve godoc
// @Summary Approve a pending application
// @Tags Staff Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	if err := h.service.Approve(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Enrollment approved successfully", nil)
}

// Reject godoc
// @Summary Disapprove a pending application
// @Tags Staff Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/enrollments/{id}/reject [post]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	if err := h.service.Reject(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Enrollment disapproved successfully", nil)
}

// Certificate godoc
// @Summary Signed link to an application's grade certificate
// @Tags Staff Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/enrollments/{id}/certificate [get]
func (h *EnrollmentHandler) Certificate(c *gin.Context) {
	link, err := h.service.CertificateURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Export godoc
// @Summary Download enrollments as CSV or PDF
// @Tags Staff Enrollments
// @Produce octet-stream
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "PENDING, APPROVED or DISAPPROVED"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/enrollments/export [get]
func (h *EnrollmentHandler) Export(c *gin.Context) {
	file, err := h.exporter.Enrollments(c.Request.Context(), export.Format(c.Query("format")), models.EnrollmentStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+file.Filename+"\"")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Download godoc
// @Summary Fetch a grade certificate through a signed link
// @Tags Enrollments
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /certificates/download [get]
func (h *EnrollmentHandler) Download(c *gin.Context) {
	file, name, err := h.service.DownloadCertificate(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read certificate"))
		return
	}
	c.Header("Content-Disposition", "inline; filename=\""+name+"\"")
	c.Header("Cache-Control", "private, no-store")
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), file)
}
