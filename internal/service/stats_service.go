package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
)

const dashboardCacheKey = cachePrefixStats + "dashboard"

type courseStatsSource interface {
	Stats(ctx context.Context) (*models.CourseStats, error)
}

type enrollmentStatsSource interface {
	Stats(ctx context.Context) (*models.EnrollmentStats, error)
}

type subjectStatsSource interface {
	Stats(ctx context.Context) (*models.SubjectStats, error)
}

// StatsService composes the staff dashboard.
type StatsService struct {
	courses     courseStatsSource
	enrollments enrollmentStatsSource
	subjects    subjectStatsSource
	cache       *CacheService
	logger      *zap.Logger
	ttl         time.Duration
	now         func() time.Time
}

// NewStatsService constructs a StatsService.
func NewStatsService(courses courseStatsSource, enrollments enrollmentStatsSource, subjects subjectStatsSource, cache *CacheService, logger *zap.Logger, ttl time.Duration) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsService{courses: courses, enrollments: enrollments, subjects: subjects, cache: cache, logger: logger, ttl: ttl, now: time.Now}
}

// Dashboard gathers course, enrollment and subject figures concurrently. The bool reports a
// cache hit.
func (s *StatsService) Dashboard(ctx context.Context) (*models.DashboardStats, bool, error) {
	var cached models.DashboardStats
	if s.cache.Get(ctx, dashboardCacheKey, &cached) {
		return &cached, true, nil
	}

	var (
		courses     *models.CourseStats
		enrollments *models.EnrollmentStats
		subjects    *models.SubjectStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		courses, err = s.courses.Stats(gctx)
		return err
	})
	g.Go(func() (err error) {
		enrollments, err = s.enrollments.Stats(gctx)
		return err
	})
	g.Go(func() (err error) {
		subjects, err = s.subjects.Stats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	stats := &models.DashboardStats{
		Courses:     *courses,
		Enrollments: *enrollments,
		Subjects:    *subjects,
		GeneratedAt: s.now().UTC(),
	}
	s.cache.Set(ctx, dashboardCacheKey, stats, s.ttl)
	return stats, false, nil
}
