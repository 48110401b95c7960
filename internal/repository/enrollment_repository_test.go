package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
)

var enrollmentDetailColumns = []string{"id", "student_id", "course_id", "enrolled_at", "status", "grade_image", "grade_thumbnail", "updated_at",
	"student_name", "student_email", "course_name", "course_category", "course_duration", "course_price"}

func TestEnrollmentListPaginates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.status = $1 ORDER BY u.name ASC LIMIT 10 OFFSET 10")).
		WithArgs(models.EnrollmentPending).
		WillReturnRows(sqlmock.NewRows(enrollmentDetailColumns).
			AddRow("e1", "u1", "c1", now, "PENDING", "/uploads/a.png", "", now, "Ana", "ana@zyu.edu", "Computing", "DEGREE", 60, "4500.00"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e WHERE e.status = $1")).
		WithArgs(models.EnrollmentPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	rows, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		Status: models.EnrollmentPending, Page: 2, PageSize: 10, SortBy: "student_name", SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana", rows[0].StudentName)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").WillReturnError(&pq.Error{Code: "23505", Constraint: "enrollments_student_course_key"})

	err := repo.Create(context.Background(), &models.Enrollment{StudentID: "u1", CourseID: "c1", GradeImage: "/uploads/a.png"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentResubmitOnlyFromDisapproved(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta("WHERE id = $1 AND status = 'DISAPPROVED'")
	mock.ExpectExec(query).WithArgs("e1", "/uploads/new.png", "/uploads/new_thumb.jpg", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("e2", "/uploads/new.png", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	e := &models.Enrollment{ID: "e1", GradeImage: "/uploads/new.png", GradeThumbnail: "/uploads/new_thumb.jpg", Status: models.EnrollmentDisapproved}
	require.NoError(t, repo.Resubmit(context.Background(), e))
	assert.Equal(t, models.EnrollmentPending, e.Status)

	err := repo.Resubmit(context.Background(), &models.Enrollment{ID: "e2", GradeImage: "/uploads/new.png"})
	assert.ErrorIs(t, err, ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentTransitionCompareAndSet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("e1", models.EnrollmentPending, models.EnrollmentApproved, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Transition(context.Background(), "e1", models.EnrollmentPending, models.EnrollmentApproved)
	assert.ErrorIs(t, err, ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE status = 'PENDING') AS pending")).
		WillReturnRows(sqlmock.NewRows([]string{"pending", "approved", "disapproved", "total"}).AddRow(2, 5, 1, 8))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStats{Pending: 2, Approved: 5, Disapproved: 1, Total: 8}, *stats)
}
