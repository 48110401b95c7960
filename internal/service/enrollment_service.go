package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
	"github.com/noah-isme/zyu-enrollment-api/pkg/imageproc"
	"github.com/noah-isme/zyu-enrollment-api/pkg/storage"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	ListAll(ctx context.Context, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
	ApprovedForStudents(ctx context.Context, studentIDs []string) ([]models.EnrollmentDetail, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Resubmit(ctx context.Context, enrollment *models.Enrollment) error
	Transition(ctx context.Context, id string, from, to models.EnrollmentStatus) error
	Stats(ctx context.Context) (*models.EnrollmentStats, error)
}

type courseCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	SubjectsForCourses(ctx context.Context, courseIDs []string) ([]models.CourseSubject, error)
}

type certificateStore interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type thumbnailer interface {
	Thumbnail(r io.Reader) ([]byte, image.Point, error)
}

type downloadSigner interface {
	Generate(ownerID, name string) (string, time.Time, error)
	Parse(token string) (ownerID, name string, expiresAt time.Time, err error)
}

// EnrollmentConfig bounds accepted grade certificates.
type EnrollmentConfig struct {
	MaxFileSize   int64
	AllowedMIMEs  []string
	UploadsPrefix string
	DownloadPath  string
}

// EnrollmentService orchestrates applications and their review.
type EnrollmentService struct {
	repo    enrollmentRepository
	courses courseCatalog
	files   certificateStore
	thumbs  thumbnailer
	signer  downloadSigner
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	cfg     EnrollmentConfig
	paths   uploadPaths
	now     func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseCatalog, files certificateStore, thumbs thumbnailer, signer downloadSigner, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg EnrollmentConfig) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/jpeg", "image/png", "image/gif"}
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/v1/certificates/download"
	}
	return &EnrollmentService{
		repo:    repo,
		courses: courses,
		files:   files,
		thumbs:  thumbs,
		signer:  signer,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		paths:   newUploadPaths(cfg.UploadsPrefix),
		now:     time.Now,
	}
}

// Apply submits or resubmits a student's application with a grade certificate.
func (s *EnrollmentService) Apply(ctx context.Context, studentID, courseID string, cert *models.Certificate) (*models.Enrollment, error) {
	if cert == nil || len(cert.Data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Grade certificate is required")
	}
	if int64(len(cert.Data)) > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Grade certificate must be at most %d MB", s.cfg.MaxFileSize/(1024*1024)))
	}
	mime := mimetype.Detect(cert.Data)
	if !mimetype.EqualsAny(mime.String(), s.cfg.AllowedMIMEs...) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Grade certificate must be a JPEG, PNG or GIF image")
	}
	thumb, _, err := s.thumbs.Thumbnail(bytes.NewReader(cert.Data))
	if err != nil {
		if errors.Is(err, imageproc.ErrTooManyPixels) {
			return nil, validationError(err, "Grade certificate image dimensions are too large")
		}
		return nil, validationError(err, "Grade certificate is not a readable image")
	}

	if _, err := parseID(courseID, "Invalid course id"); err != nil {
		return nil, err
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Course not found")
		}
		return nil, internalError(err, "failed to load course")
	}
	if course.Status != models.StatusAvailable {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "Course is not open for enrollment")
	}

	existing, err := s.repo.FindByStudentCourse(ctx, studentID, courseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to check existing application")
	}
	var from models.EnrollmentStatus
	if existing != nil {
		from = existing.Status
	}
	switch from {
	case models.EnrollmentPending:
		return nil, appErrors.Clone(appErrors.ErrConflict, "You already have a pending application for this course")
	case models.EnrollmentApproved:
		return nil, appErrors.Clone(appErrors.ErrConflict, "You are already enrolled in this course")
	}
	if !models.CanTransition(from, models.EnrollmentPending) {
		return nil, transitionError(from, models.EnrollmentPending)
	}

	base := fmt.Sprintf("%d-%s", s.now().UnixMilli(), uuid.NewString())
	imageName, err := s.files.Save(base+mime.Extension(), cert.Data)
	if err != nil {
		return nil, internalError(err, "failed to store grade certificate")
	}
	thumbName, err := s.files.Save(base+"_thumb.jpg", thumb)
	if err != nil {
		s.removeFiles(imageName)
		return nil, internalError(err, "failed to store grade certificate")
	}

	enrollment := &models.Enrollment{
		StudentID:      studentID,
		CourseID:       courseID,
		Status:         models.EnrollmentPending,
		GradeImage:     s.paths.public(imageName),
		GradeThumbnail: s.paths.public(thumbName),
	}
	resubmitted := existing != nil
	if resubmitted {
		enrollment.ID = existing.ID
		err = s.repo.Resubmit(ctx, enrollment)
	} else {
		err = s.repo.Create(ctx, enrollment)
	}
	if err != nil {
		s.removeFiles(imageName, thumbName)
		if errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrStaleState) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "You have already applied for this course")
		}
		return nil, internalError(err, "failed to submit application")
	}

	if resubmitted {
		s.removeStored(existing.GradeImage, existing.GradeThumbnail)
	}
	s.metrics.RecordApplication(resubmitted)
	s.cache.Invalidate(ctx, cachePrefixStats)
	s.logger.Info("application submitted",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("course_id", courseID),
		zap.Bool("resubmitted", resubmitted),
	)
	return enrollment, nil
}

// MyRecords returns every application of the student, newest first.
func (s *EnrollmentService) MyRecords(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	records, err := s.repo.ListByStudent(ctx, studentID, "")
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}
	if records == nil {
		records = []models.EnrollmentDetail{}
	}
	return records, nil
}

// MyCourses returns the student's approved courses with their subjects.
func (s *EnrollmentService) MyCourses(ctx context.Context, studentID string) ([]models.MyCourse, error) {
	approved, err := s.repo.ListByStudent(ctx, studentID, models.EnrollmentApproved)
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}
	subjects, err := s.subjectsByCourse(ctx, approved)
	if err != nil {
		return nil, err
	}
	result := make([]models.MyCourse, 0, len(approved))
	for _, e := range approved {
		result = append(result, models.MyCourse{EnrollmentDetail: e, Subjects: nonNilSubjects(subjects[e.CourseID])})
	}
	return result, nil
}

// Pending lists applications awaiting review with the context staff need to decide.
func (s *EnrollmentService) Pending(ctx context.Context) ([]models.PendingApplication, error) {
	pending, err := s.repo.ListAll(ctx, models.EnrollmentPending)
	if err != nil {
		return nil, internalError(err, "failed to list pending applications")
	}
	if len(pending) == 0 {
		return []models.PendingApplication{}, nil
	}

	seen := make(map[string]struct{}, len(pending))
	studentIDs := make([]string, 0, len(pending))
	for _, e := range pending {
		if _, ok := seen[e.StudentID]; !ok {
			seen[e.StudentID] = struct{}{}
			studentIDs = append(studentIDs, e.StudentID)
		}
	}

	var (
		history  []models.EnrollmentDetail
		subjects map[string][]models.Subject
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.repo.ApprovedForStudents(gctx, studentIDs)
		if err != nil {
			return internalError(err, "failed to load approved history")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		subjects, err = s.subjectsByCourse(gctx, pending)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byStudent := make(map[string][]models.EnrollmentDetail)
	for _, h := range history {
		byStudent[h.StudentID] = append(byStudent[h.StudentID], h)
	}
	result := make([]models.PendingApplication, 0, len(pending))
	for _, e := range pending {
		approved := byStudent[e.StudentID]
		if approved == nil {
			approved = []models.EnrollmentDetail{}
		}
		result = append(result, models.PendingApplication{
			EnrollmentDetail: e,
			CourseSubjects:   nonNilSubjects(subjects[e.CourseID]),
			ApprovedHistory:  approved,
		})
	}
	return result, nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list enrollments")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Approve moves a PENDING application to APPROVED.
func (s *EnrollmentService) Approve(ctx context.Context, id string) error {
	return s.decide(ctx, id, models.EnrollmentApproved)
}

// Reject moves a PENDING application to DISAPPROVED.
func (s *EnrollmentService) Reject(ctx context.Context, id string) error {
	return s.decide(ctx, id, models.EnrollmentDisapproved)
}

func (s *EnrollmentService) decide(ctx context.Context, id string, to models.EnrollmentStatus) error {
	enrollment, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !models.CanTransition(enrollment.Status, to) {
		return transitionError(enrollment.Status, to)
	}
	if err := s.repo.Transition(ctx, enrollment.ID, enrollment.Status, to); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "Enrollment was changed by another reviewer. Please reload.")
		}
		return internalError(err, "failed to update enrollment")
	}
	s.metrics.RecordDecision(string(to))
	s.cache.Invalidate(ctx, cachePrefixStats)
	if to == models.EnrollmentApproved {
		s.cache.Invalidate(ctx, cachePrefixCatalog+"popular:")
	}
	s.logger.Info("enrollment decided", zap.String("enrollment_id", enrollment.ID), zap.String("status", string(to)))
	return nil
}

// Stats counts enrollments by status.
func (s *EnrollmentService) Stats(ctx context.Context) (*models.EnrollmentStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, internalError(err, "failed to fetch statistics")
	}
	return stats, nil
}

// CertificateURL issues an expiring download link for the application's certificate.
func (s *EnrollmentService) CertificateURL(ctx context.Context, id string) (*models.CertificateLink, error) {
	enrollment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	name, ok := s.paths.storedName(enrollment.GradeImage)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Grade certificate not found")
	}
	token, expiresAt, err := s.signer.Generate(enrollment.ID, name)
	if err != nil {
		return nil, internalError(err, "failed to sign certificate link")
	}
	return &models.CertificateLink{URL: s.cfg.DownloadPath + "?token=" + token, ExpiresAt: expiresAt}, nil
}

// DownloadCertificate opens the certificate a signed token points at. The caller closes the file.
func (s *EnrollmentService) DownloadCertificate(ctx context.Context, token string) (*os.File, string, error) {
	if strings.TrimSpace(token) == "" {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "token is required")
	}
	enrollmentID, name, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "Download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "Invalid download link")
	}
	enrollment, err := s.find(ctx, enrollmentID)
	if err != nil {
		return nil, "", err
	}
	if stored, ok := s.paths.storedName(enrollment.GradeImage); !ok || stored != name {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "Invalid download link")
	}
	file, err := s.files.Open(name)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "Grade certificate not found")
	}
	return file, path.Base(name), nil
}

func (s *EnrollmentService) find(ctx context.Context, id string) (*models.Enrollment, error) {
	if _, err := parseID(id, "Invalid enrollment id"); err != nil {
		return nil, err
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Enrollment not found")
		}
		return nil, internalError(err, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) subjectsByCourse(ctx context.Context, enrollments []models.EnrollmentDetail) (map[string][]models.Subject, error) {
	seen := make(map[string]struct{}, len(enrollments))
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		if _, ok := seen[e.CourseID]; !ok {
			seen[e.CourseID] = struct{}{}
			ids = append(ids, e.CourseID)
		}
	}
	result := make(map[string][]models.Subject, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	links, err := s.courses.SubjectsForCourses(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load course subjects")
	}
	for _, link := range links {
		result[link.CourseID] = append(result[link.CourseID], link.Subject)
	}
	return result, nil
}

func (s *EnrollmentService) removeFiles(names ...string) {
	for _, name := range names {
		if err := s.files.Delete(name); err != nil {
			s.logger.Warn("failed to remove certificate file", zap.String("file", name), zap.Error(err))
		}
	}
}

func (s *EnrollmentService) removeStored(publicPaths ...string) {
	for _, p := range publicPaths {
		if name, ok := s.paths.storedName(p); ok {
			s.removeFiles(name)
		}
	}
}

func transitionError(from, to models.EnrollmentStatus) error {
	terr := &models.TransitionError{From: from, To: to}
	return appErrors.Wrap(terr, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, terr.Error())
}

func nonNilSubjects(subjects []models.Subject) []models.Subject {
	if subjects == nil {
		return []models.Subject{}
	}
	return subjects
}
