package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "email", "name", "password_hash", "role", "failed_login_attempts", "status", "created_at", "updated_at"}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u1", "ana@zyu.edu", "Ana", "hash", string(models.RoleStudent), 1, string(models.UserStatusActive), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("ana@zyu.edu").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), " ana@zyu.edu ")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, 1, user.FailedLoginAttempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE LOWER\\(email\\)").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "missing@zyu.edu")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.User{Email: "ana@zyu.edu", Name: "Ana", PasswordHash: "h", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailedLogin(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SET failed_login_attempts = failed_login_attempts + 1")).
		WithArgs("u1", 3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "status"}).AddRow(3, "INACTIVE"))

	attempts, status, err := repo.RecordFailedLogin(context.Background(), "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, models.UserStatusInactive, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPasswordDetectsStaleHash(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND password_hash = $2")).
		WithArgs("u1", "old", "new", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ResetPassword(context.Background(), "u1", "old", "new")
	assert.ErrorIs(t, err, ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAccountCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT email FROM users WHERE id = $1 FOR UPDATE")).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("ana@zyu.edu"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT grade_image, grade_thumbnail FROM enrollments WHERE student_id = $1")).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"grade_image", "grade_thumbnail"}).AddRow("/uploads/a.png", "/uploads/a_thumb.jpg"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE student_id = $1")).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM todo_items WHERE user_id = $1")).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM password_reset_codes")).WithArgs("ana@zyu.edu").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	files, err := repo.DeleteAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"/uploads/a.png", "/uploads/a_thumb.jpg"}, files)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAccountRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT email FROM users")).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("ana@zyu.edu"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT grade_image, grade_thumbnail FROM enrollments")).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"grade_image", "grade_thumbnail"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments")).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM todo_items")).WithArgs("u1").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.DeleteAccount(context.Background(), "u1")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailTakenExcludesSelf(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND id <> $2)")).
		WithArgs("ana@zyu.edu", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	taken, err := repo.EmailTaken(context.Background(), "ana@zyu.edu", "u1")
	require.NoError(t, err)
	assert.False(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}
