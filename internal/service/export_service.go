package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
	"github.com/noah-isme/zyu-enrollment-api/pkg/export"
)

type enrollmentExportSource interface {
	ListAll(ctx context.Context, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var enrollmentExportHeaders = []string{"Student", "Email", "Course", "Category", "Duration (hrs)", "Price", "Status", "Applied At"}

// ExportFile is a rendered export ready to be sent to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders enrollment records as CSV or PDF.
type ExportService struct {
	enrollments enrollmentExportSource
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments enrollmentExportSource, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{enrollments: enrollments, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Enrollments renders every enrollment, optionally limited to one status.
func (s *ExportService) Enrollments(ctx context.Context, format export.Format, status models.EnrollmentStatus) (*ExportFile, error) {
	if format == "" {
		format = export.FormatCSV
	}
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if status != "" && !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
	}

	rows, err := s.enrollments.ListAll(ctx, status)
	if err != nil {
		return nil, internalError(err, "failed to load enrollments")
	}
	dataset := export.Dataset{Headers: enrollmentExportHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":        row.StudentName,
			"Email":          row.StudentEmail,
			"Course":         row.CourseName,
			"Category":       string(row.CourseCategory),
			"Duration (hrs)": fmt.Sprintf("%d", row.CourseDuration),
			"Price":          fmt.Sprintf("%.2f", row.CoursePrice),
			"Status":         string(row.Status),
			"Applied At":     row.EnrolledAt.UTC().Format(time.RFC3339),
		})
	}

	var payload []byte
	switch format {
	case export.FormatPDF:
		title := "Enrollments"
		if status != "" {
			title = fmt.Sprintf("Enrollments (%s)", status)
		}
		payload, err = s.pdf.Render(dataset, title)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, internalError(err, "failed to render export")
	}

	s.logger.Info("enrollments exported", zap.String("format", string(format)), zap.Int("rows", len(rows)))
	return &ExportFile{
		Filename:    s.buildFilename(format, status),
		ContentType: format.ContentType(),
		Data:        payload,
	}, nil
}

func (s *ExportService) buildFilename(format export.Format, status models.EnrollmentStatus) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	part := "all"
	if status != "" {
		part = strings.ToLower(string(status))
	}
	return fmt.Sprintf("enrollments_%s_%s.%s", part, timestamp, format)
}
