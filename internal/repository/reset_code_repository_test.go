package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
)

func TestResetCodeUpsertNormalisesEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetCodeRepository(db)

	mock.ExpectExec("(?s)INSERT INTO password_reset_codes.*ON CONFLICT \\(email\\) DO UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	code := &models.PasswordResetCode{Email: " Ana@ZYU.edu", CodeHash: "abc", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, repo.Upsert(context.Background(), code))
	assert.Equal(t, "ana@zyu.edu", code.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetCodeConsume(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetCodeRepository(db)
	now := time.Now()

	query := regexp.QuoteMeta("DELETE FROM password_reset_codes WHERE email = $1 AND code_hash = $2 AND expires_at > $3 RETURNING email")
	mock.ExpectQuery(query).WithArgs("ana@zyu.edu", "abc", now).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("ana@zyu.edu"))
	mock.ExpectQuery(query).WithArgs("ana@zyu.edu", "abc", now).
		WillReturnError(sql.ErrNoRows)

	ok, err := repo.Consume(context.Background(), "ana@zyu.edu", "abc", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Consume(context.Background(), "ana@zyu.edu", "abc", now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetCodeDeleteExpired(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetCodeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM password_reset_codes WHERE expires_at <= $1")).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
