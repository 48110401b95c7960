package service

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

const defaultPopularLimit = 6

type courseRepository interface {
	ListAvailable(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	ListAll(ctx context.Context) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	SubjectsForCourses(ctx context.Context, courseIDs []string) ([]models.CourseSubject, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SetStatus(ctx context.Context, id string, status models.AvailabilityStatus) error
	AddSubject(ctx context.Context, courseID, subjectID string) error
	RemoveSubject(ctx context.Context, courseID, subjectID string) error
	Popular(ctx context.Context, limit int) ([]models.PopularCourse, error)
	Stats(ctx context.Context) (*models.CourseStats, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// CourseService serves the public catalogue and staff course management.
type CourseService struct {
	repo       courseRepository
	subjects   subjectReader
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	catalogTTL time.Duration
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, subjects subjectReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger, catalogTTL time.Duration) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:       repo,
		subjects:   subjects,
		cache:      cache,
		validator:  ensureValidator(validate),
		logger:     logger,
		catalogTTL: catalogTTL,
	}
}

// Catalog lists AVAILABLE courses with their subjects. The bool reports a cache hit.
func (s *CourseService) Catalog(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithSubjects, bool, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, false, validationError(err, "invalid course filter")
	}
	filter.Name = strings.TrimSpace(filter.Name)

	key := catalogKey(filter)
	var cached []models.CourseWithSubjects
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	courses, err := s.repo.ListAvailable(ctx, filter)
	if err != nil {
		return nil, false, internalError(err, "failed to list courses")
	}
	result, err := s.withSubjects(ctx, courses)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, key, result, s.catalogTTL)
	return result, false, nil
}

// Get returns the public summary of one course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseSummary, error) {
	course, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.CourseSummary{
		ID:          course.ID,
		Name:        course.Name,
		Category:    course.Category,
		Duration:    course.Duration,
		Price:       course.Price,
		Description: course.Description,
	}, nil
}

// Subjects returns the course name and its subjects.
func (s *CourseService) Subjects(ctx context.Context, id string) (*models.CourseSubjectList, error) {
	course, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.SubjectsForCourses(ctx, []string{course.ID})
	if err != nil {
		return nil, internalError(err, "failed to load course subjects")
	}
	subjects := make([]models.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, row.Subject)
	}
	return &models.CourseSubjectList{CourseID: course.ID, CourseName: course.Name, Subjects: subjects}, nil
}

// ListAll returns every course with subjects for staff.
func (s *CourseService) ListAll(ctx context.Context) ([]models.CourseWithSubjects, error) {
	courses, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list courses")
	}
	return s.withSubjects(ctx, courses)
}

// Create adds an AVAILABLE course.
func (s *CourseService) Create(ctx context.Context, req models.UpsertCourseRequest) (*models.Course, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	course := &models.Course{
		Name:        req.Name,
		Category:    req.Category,
		Duration:    req.Duration,
		Price:       req.Price,
		Description: strings.TrimSpace(req.Description),
		Status:      models.StatusAvailable,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, internalError(err, "failed to create course")
	}
	s.cache.Invalidate(ctx, cachePrefixCatalog)
	s.logger.Info("course created", zap.String("course_id", course.ID))
	return course, nil
}

// Update edits a course. Its duration may not drop below the hours already assigned.
func (s *CourseService) Update(ctx context.Context, id string, req models.UpsertCourseRequest) (*models.Course, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	course, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Name = req.Name
	course.Category = req.Category
	course.Duration = req.Duration
	course.Price = req.Price
	course.Description = strings.TrimSpace(req.Description)

	if err := s.repo.Update(ctx, course); err != nil {
		var capErr *repository.CapacityError
		switch {
		case errors.As(err, &capErr):
			msg := fmt.Sprintf("Cannot set duration to %d hrs. Subjects already assigned total %d hrs.", course.Duration, capErr.Assigned)
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrDurationExceeded, msg), map[string]interface{}{"assigned_hours": capErr.Assigned})
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Course not found")
		}
		return nil, internalError(err, "failed to update course")
	}
	s.cache.Invalidate(ctx, cachePrefixCatalog)
	return course, nil
}

// SetStatus flips a course between AVAILABLE and UNAVAILABLE.
func (s *CourseService) SetStatus(ctx context.Context, id string, req models.SetStatusRequest) error {
	if _, err := parseID(id, "Invalid course id"); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid status")
	}
	if err := s.repo.SetStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Course not found")
		}
		return internalError(err, "failed to update course status")
	}
	s.cache.Invalidate(ctx, cachePrefixCatalog)
	return nil
}

// AddSubject links an AVAILABLE subject to the course if its hours still fit.
func (s *CourseService) AddSubject(ctx context.Context, courseID string, req models.CourseSubjectRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid subject id")
	}
	if _, err := s.find(ctx, courseID); err != nil {
		return err
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Subject not found")
		}
		return internalError(err, "failed to load subject")
	}
	if subject.Status != models.StatusAvailable {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "Subject is not available")
	}

	if err := s.repo.AddSubject(ctx, courseID, subject.ID); err != nil {
		var capErr *repository.CapacityError
		switch {
		case errors.As(err, &capErr):
			msg := fmt.Sprintf("Cannot add subject. Total duration (%d hrs) would exceed course duration (%d hrs). Remaining: %d hrs",
				capErr.Assigned+capErr.Adding, capErr.Limit, capErr.Remaining())
			return appErrors.WithDetails(appErrors.Clone(appErrors.ErrDurationExceeded, msg), map[string]interface{}{"remaining_hours": capErr.Remaining()})
		case errors.Is(err, repository.ErrDuplicate):
			return appErrors.Clone(appErrors.ErrConflict, "Subject already added to this course")
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "Course not found")
		}
		return internalError(err, "failed to add subject")
	}
	s.cache.Invalidate(ctx, cachePrefixCatalog)
	return nil
}

// RemoveSubject unlinks a subject from the course.
func (s *CourseService) RemoveSubject(ctx context.Context, courseID, subjectID string) error {
	courseID, err := parseID(courseID, "Invalid course id")
	if err != nil {
		return err
	}
	subjectID, err = parseID(subjectID, "Invalid subject id")
	if err != nil {
		return err
	}
	if err := s.repo.RemoveSubject(ctx, courseID, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Subject is not linked to this course")
		}
		return internalError(err, "failed to remove subject")
	}
	s.cache.Invalidate(ctx, cachePrefixCatalog)
	return nil
}

// Popular ranks courses by approved enrollments. The bool reports a cache hit.
func (s *CourseService) Popular(ctx context.Context, limit int) ([]models.PopularCourse, bool, error) {
	if limit <= 0 || limit > 50 {
		limit = defaultPopularLimit
	}
	key := fmt.Sprintf("%spopular:%d", cachePrefixCatalog, limit)
	var cached []models.PopularCourse
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}
	popular, err := s.repo.Popular(ctx, limit)
	if err != nil {
		return nil, false, internalError(err, "failed to load popular courses")
	}
	if popular == nil {
		popular = []models.PopularCourse{}
	}
	s.cache.Set(ctx, key, popular, s.catalogTTL)
	return popular, false, nil
}

// Stats summarises the catalogue for staff.
func (s *CourseService) Stats(ctx context.Context) (*models.CourseStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, internalError(err, "failed to fetch statistics")
	}
	return stats, nil
}

func (s *CourseService) find(ctx context.Context, id string) (*models.Course, error) {
	if _, err := parseID(id, "Invalid course id"); err != nil {
		return nil, err
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Course not found")
		}
		return nil, internalError(err, "failed to load course")
	}
	return course, nil
}

func (s *CourseService) withSubjects(ctx context.Context, courses []models.Course) ([]models.CourseWithSubjects, error) {
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	links, err := s.repo.SubjectsForCourses(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load course subjects")
	}
	byCourse := make(map[string][]models.Subject, len(courses))
	for _, link := range links {
		byCourse[link.CourseID] = append(byCourse[link.CourseID], link.Subject)
	}

	result := make([]models.CourseWithSubjects, 0, len(courses))
	for _, c := range courses {
		subjects := byCourse[c.ID]
		if subjects == nil {
			subjects = []models.Subject{}
		}
		total := 0
		for _, sub := range subjects {
			total += sub.Duration
		}
		remaining := c.Duration - total
		if remaining < 0 {
			remaining = 0
		}
		result = append(result, models.CourseWithSubjects{Course: c, Subjects: subjects, TotalHours: total, RemainingHours: remaining})
	}
	return result, nil
}

func parseID(id, message string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	return parsed.String(), nil
}

func catalogKey(filter models.CourseFilter) string {
	raw, _ := json.Marshal(filter)
	sum := sha1.Sum(raw)
	return cachePrefixCatalog + "list:" + hex.EncodeToString(sum[:8])
}
