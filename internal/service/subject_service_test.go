package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

type mockSubjectRepo struct {
	subjects    []models.Subject
	links       []models.SubjectCourseLink
	overflowing []models.CourseRef
	deletable   bool
	courseCount int
	updated     *models.Subject
}

func (m *mockSubjectRepo) List(ctx context.Context, availableOnly bool) ([]models.Subject, error) {
	var out []models.Subject
	for _, s := range m.subjects {
		if !availableOnly || s.Status == models.StatusAvailable {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSubjectRepo) CourseLinks(ctx context.Context) ([]models.SubjectCourseLink, error) {
	return m.links, nil
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	for _, s := range m.subjects {
		if s.ID == id {
			clone := s
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = subjectID
	return nil
}

func (m *mockSubjectRepo) Update(ctx context.Context, subject *models.Subject) error {
	m.updated = subject
	return nil
}

func (m *mockSubjectRepo) CoursesOverflowing(ctx context.Context, id string, newDuration int) ([]models.CourseRef, error) {
	return m.overflowing, nil
}

func (m *mockSubjectRepo) SetStatus(ctx context.Context, id string, status models.AvailabilityStatus) error {
	return nil
}

func (m *mockSubjectRepo) CountCourses(ctx context.Context, id string) (int, error) {
	return m.courseCount, nil
}

func (m *mockSubjectRepo) DeleteUnused(ctx context.Context, id string) (bool, error) {
	return m.deletable, nil
}

func (m *mockSubjectRepo) Stats(ctx context.Context) (*models.SubjectStats, error) {
	return &models.SubjectStats{TotalSubjects: len(m.subjects)}, nil
}

func TestListSubjectsWithCourses(t *testing.T) {
	repo := &mockSubjectRepo{
		subjects: []models.Subject{
			{ID: "s1", Name: "Algorithms", Status: models.StatusAvailable},
			{ID: "s2", Name: "Ethics", Status: models.StatusUnavailable},
		},
		links: []models.SubjectCourseLink{{SubjectID: "s1", CourseID: "c1", CourseName: "Computer Science"}},
	}
	svc := NewSubjectService(repo, nil, nil, nil)

	subjects, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, []models.CourseRef{{ID: "c1", Name: "Computer Science"}}, subjects[0].Courses)
	assert.Empty(t, subjects[1].Courses)
	assert.NotNil(t, subjects[1].Courses)

	available, err := svc.ListAvailable(context.Background())
	require.NoError(t, err)
	assert.Len(t, available, 1)
}

func TestDeleteSubjectInUse(t *testing.T) {
	repo := &mockSubjectRepo{courseCount: 2}
	svc := NewSubjectService(repo, nil, nil, nil)

	err := svc.Delete(context.Background(), subjectID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrSubjectInUse)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "Cannot delete subject. It is currently used in 2 course(s). Please remove it from all courses first.", appErr.Message)
	assert.Equal(t, 2, appErr.Details["blocking_courses"])
}

func TestDeleteSubject(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{deletable: true}, nil, nil, nil)
	assert.NoError(t, svc.Delete(context.Background(), subjectID))

	svc = NewSubjectService(&mockSubjectRepo{}, nil, nil, nil)
	assert.ErrorIs(t, svc.Delete(context.Background(), subjectID), appErrors.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "nope"), appErrors.ErrValidation)
}

func TestUpdateSubjectOverflowsCourse(t *testing.T) {
	repo := &mockSubjectRepo{
		subjects:    []models.Subject{{ID: subjectID, Name: "Networks", Duration: 6}},
		overflowing: []models.CourseRef{{ID: "c1", Name: "Computer Science"}},
	}
	svc := NewSubjectService(repo, nil, nil, nil)

	_, err := svc.Update(context.Background(), subjectID, models.UpsertSubjectRequest{Name: "Networks", Duration: 20})
	assert.ErrorIs(t, err, appErrors.ErrDurationExceeded)
	assert.Nil(t, repo.updated)

	// shrinking skips the overflow check
	subject, err := svc.Update(context.Background(), subjectID, models.UpsertSubjectRequest{Name: " Networking ", Duration: 4})
	require.NoError(t, err)
	assert.Equal(t, "Networking", subject.Name)
	assert.Equal(t, 4, repo.updated.Duration)
}

func TestUpdateSubjectInvalidatesCatalog(t *testing.T) {
	repo := &mockSubjectRepo{subjects: []models.Subject{{ID: subjectID, Name: "Networks", Duration: 6}}}
	backend := newMemoryCache()
	svc := NewSubjectService(repo, NewCacheService(backend, nil, 0, nil, true), nil, nil)

	_, err := svc.Update(context.Background(), subjectID, models.UpsertSubjectRequest{Name: "Networks", Duration: 6})
	require.NoError(t, err)
	assert.Equal(t, []string{"catalog:*"}, backend.deleted)
}

func TestCreateSubjectValidation(t *testing.T) {
	svc := NewSubjectService(&mockSubjectRepo{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), models.UpsertSubjectRequest{Name: "Ethics", Duration: 0})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	subject, err := svc.Create(context.Background(), models.UpsertSubjectRequest{Name: "Ethics", Duration: 3})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, subject.Status)
}
