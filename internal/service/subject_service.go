package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, availableOnly bool) ([]models.Subject, error)
	CourseLinks(ctx context.Context) ([]models.SubjectCourseLink, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	CoursesOverflowing(ctx context.Context, subjectID string, newDuration int) ([]models.CourseRef, error)
	SetStatus(ctx context.Context, id string, status models.AvailabilityStatus) error
	CountCourses(ctx context.Context, id string) (int, error)
	DeleteUnused(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (*models.SubjectStats, error)
}

// SubjectService handles subject domain workflows.
type SubjectService struct {
	repo      subjectRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, cache: cache, validator: ensureValidator(validate), logger: logger}
}

// List returns every subject with the courses it is assigned to.
func (s *SubjectService) List(ctx context.Context) ([]models.SubjectWithCourses, error) {
	subjects, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, internalError(err, "failed to list subjects")
	}
	links, err := s.repo.CourseLinks(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list subject courses")
	}
	bySubject := make(map[string][]models.CourseRef)
	for _, link := range links {
		bySubject[link.SubjectID] = append(bySubject[link.SubjectID], models.CourseRef{ID: link.CourseID, Name: link.CourseName})
	}

	result := make([]models.SubjectWithCourses, 0, len(subjects))
	for _, subject := range subjects {
		courses := bySubject[subject.ID]
		if courses == nil {
			courses = []models.CourseRef{}
		}
		result = append(result, models.SubjectWithCourses{Subject: subject, Courses: courses})
	}
	return result, nil
}

// ListAvailable returns subjects that may be assigned to courses.
func (s *SubjectService) ListAvailable(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, internalError(err, "failed to list subjects")
	}
	if subjects == nil {
		subjects = []models.Subject{}
	}
	return subjects, nil
}

// Create adds an AVAILABLE subject.
func (s *SubjectService) Create(ctx context.Context, req models.UpsertSubjectRequest) (*models.Subject, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "Name and a positive duration are required")
	}
	subject := &models.Subject{Name: req.Name, Duration: req.Duration, Status: models.StatusAvailable}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, internalError(err, "failed to create subject")
	}
	return subject, nil
}

// Update renames or resizes a subject. Growing it must not overflow any course using it.
func (s *SubjectService) Update(ctx context.Context, id string, req models.UpsertSubjectRequest) (*models.Subject, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "Name and a positive duration are required")
	}
	subject, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Duration > subject.Duration {
		overflowing, err := s.repo.CoursesOverflowing(ctx, subject.ID, req.Duration)
		if err != nil {
			return nil, internalError(err, "failed to check course durations")
		}
		if len(overflowing) > 0 {
			msg := fmt.Sprintf("Cannot set duration to %d hrs. It would exceed the duration of %d course(s).", req.Duration, len(overflowing))
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrDurationExceeded, msg), map[string]interface{}{"blocking_courses": overflowing})
		}
	}

	subject.Name = req.Name
	subject.Duration = req.Duration
	if err := s.repo.Update(ctx, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Subject not found")
		}
		return nil, internalError(err, "failed to update subject")
	}
	s.cache.Invalidate(ctx, cachePrefixCatalog)
	return subject, nil
}

// SetStatus flips a subject between AVAILABLE and UNAVAILABLE.
func (s *SubjectService) SetStatus(ctx context.Context, id string, req models.SetStatusRequest) error {
	if _, err := parseID(id, "Invalid subject id"); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid status")
	}
	if err := s.repo.SetStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Subject not found")
		}
		return internalError(err, "failed to update subject status")
	}
	s.cache.Invalidate(ctx, cachePrefixCatalog)
	return nil
}

// Delete removes a subject that no course uses.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := parseID(id, "Invalid subject id"); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteUnused(ctx, id)
	if err != nil {
		return internalError(err, "failed to delete subject")
	}
	if deleted {
		s.logger.Info("subject deleted", zap.String("subject_id", id))
		return nil
	}

	count, err := s.repo.CountCourses(ctx, id)
	if err != nil {
		return internalError(err, "failed to count subject courses")
	}
	if count == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "Subject not found")
	}
	msg := fmt.Sprintf("Cannot delete subject. It is currently used in %d course(s). Please remove it from all courses first.", count)
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrSubjectInUse, msg), map[string]interface{}{"blocking_courses": count})
}

// Stats counts subjects by usage.
func (s *SubjectService) Stats(ctx context.Context) (*models.SubjectStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, internalError(err, "failed to fetch statistics")
	}
	return stats, nil
}

func (s *SubjectService) find(ctx context.Context, id string) (*models.Subject, error) {
	if _, err := parseID(id, "Invalid subject id"); err != nil {
		return nil, err
	}
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Subject not found")
		}
		return nil, internalError(err, "failed to load subject")
	}
	return subject, nil
}
