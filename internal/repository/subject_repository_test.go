package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteUnusedSubject(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	query := regexp.QuoteMeta("DELETE FROM subjects WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM course_subjects WHERE subject_id = $1)")
	mock.ExpectExec(query).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("s2").WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.DeleteUnused(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteUnused(context.Background(), "s2")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectStatsDerivesUnused(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(DISTINCT subject_id) FROM course_subjects) AS subjects_in_use")).
		WillReturnRows(sqlmock.NewRows([]string{"total_subjects", "subjects_in_use"}).AddRow(10, 7))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.UnusedSubjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoursesOverflowing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE cs2.course_id = c.id AND cs2.subject_id <> $1) > c.duration")).
		WithArgs("s1", 40).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("c1", "Computing"))

	refs, err := repo.CoursesOverflowing(context.Background(), "s1", 40)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Computing", refs[0].Name)
}
