package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
)

const userColumns = `id, email, name, password_hash, role, failed_login_attempts, status, created_at, updated_at`

// UserRepository provides database access for accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address. Emails compare case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.TrimSpace(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// EmailTaken reports whether another account (not excludeID) uses email.
func (r *UserRepository) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND id <> $2)`
	var taken bool
	if excludeID == "" {
		excludeID = uuid.Nil.String()
	}
	if err := r.db.GetContext(ctx, &taken, query, strings.TrimSpace(email), excludeID); err != nil {
		return false, fmt.Errorf("check email in use: %w", err)
	}
	return taken, nil
}

// Create inserts a new user. A unique email violation yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}

	const query = `INSERT INTO users (id, email, name, password_hash, role, failed_login_attempts, status, created_at, updated_at) VALUES (:id, :email, :name, :password_hash, :role, :failed_login_attempts, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return wrapWrite("create user", err)
	}
	return nil
}

// RecordFailedLogin atomically bumps the failure counter and deactivates the account once
// it reaches maxAttempts. It returns the new counter and status.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id string, maxAttempts int) (int, models.UserStatus, error) {
	const query = `UPDATE users
SET failed_login_attempts = failed_login_attempts + 1,
    status = CASE WHEN failed_login_attempts + 1 >= $2 THEN 'INACTIVE' ELSE status END,
    updated_at = $3
WHERE id = $1
RETURNING failed_login_attempts, status`
	var out struct {
		Attempts int               `db:"failed_login_attempts"`
		Status   models.UserStatus `db:"status"`
	}
	if err := r.db.GetContext(ctx, &out, query, id, maxAttempts, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", err
		}
		return 0, "", fmt.Errorf("record failed login: %w", err)
	}
	return out.Attempts, out.Status, nil
}

// ResetLoginState clears the failure counter and reactivates the account.
func (r *UserRepository) ResetLoginState(ctx context.Context, id string) error {
	const query = `UPDATE users SET failed_login_attempts = 0, status = 'ACTIVE', updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset login state: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ResetPassword stores a new hash only if the current one still matches expectedHash, and
// unlocks the account. It returns ErrStaleState when the password changed meanwhile.
func (r *UserRepository) ResetPassword(ctx context.Context, id, expectedHash, newHash string) error {
	const query = `UPDATE users SET password_hash = $3, failed_login_attempts = 0, status = 'ACTIVE', updated_at = $4 WHERE id = $1 AND password_hash = $2`
	res, err := r.db.ExecContext(ctx, query, id, expectedHash, newHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset password rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleState
	}
	return nil
}

// UpdateProfile changes name and email. A unique email violation yields ErrDuplicate.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET name = :name, email = :email, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return wrapWrite("update profile", err)
	}
	return nil
}

// DeleteAccount removes the user and everything owned by them in one transaction and
// returns the stored certificate files so the caller can clean them up.
func (r *UserRepository) DeleteAccount(ctx context.Context, id string) (files []string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete account: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var email string
	if err = tx.GetContext(ctx, &email, `SELECT email FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}

	var uploads []struct {
		Image     string `db:"grade_image"`
		Thumbnail string `db:"grade_thumbnail"`
	}
	if err = tx.SelectContext(ctx, &uploads, `SELECT grade_image, grade_thumbnail FROM enrollments WHERE student_id = $1`, id); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM enrollments WHERE student_id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete enrollments: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM todo_items WHERE user_id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete todo items: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM password_reset_codes WHERE LOWER(email) = LOWER($1)`, email); err != nil {
		return nil, fmt.Errorf("delete reset codes: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete account: %w", err)
	}

	files = make([]string, 0, len(uploads)*2)
	for _, u := range uploads {
		if u.Image != "" {
			files = append(files, u.Image)
		}
		if u.Thumbnail != "" {
			files = append(files, u.Thumbnail)
		}
	}
	return files, nil
}
