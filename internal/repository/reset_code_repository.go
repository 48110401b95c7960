package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
)

// ResetCodeRepository stores hashed password reset codes, one live code per email.
type ResetCodeRepository struct {
	db *sqlx.DB
}

// NewResetCodeRepository constructs the repository.
func NewResetCodeRepository(db *sqlx.DB) *ResetCodeRepository {
	return &ResetCodeRepository{db: db}
}

// Upsert stores code, replacing any previous code for the same email.
func (r *ResetCodeRepository) Upsert(ctx context.Context, code *models.PasswordResetCode) error {
	code.Email = strings.ToLower(strings.TrimSpace(code.Email))
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO password_reset_codes (email, code_hash, expires_at, created_at)
VALUES (:email, :code_hash, :expires_at, :created_at)
ON CONFLICT (email) DO UPDATE SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, code); err != nil {
		return fmt.Errorf("upsert reset code: %w", err)
	}
	return nil
}

// Consume deletes the matching, unexpired code and reports whether one existed.
// The delete is the check, so two concurrent verifications cannot both succeed.
func (r *ResetCodeRepository) Consume(ctx context.Context, email, codeHash string, now time.Time) (bool, error) {
	const query = `DELETE FROM password_reset_codes WHERE email = $1 AND code_hash = $2 AND expires_at > $3 RETURNING email`
	var consumed string
	err := r.db.GetContext(ctx, &consumed, query, strings.ToLower(strings.TrimSpace(email)), codeHash, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("consume reset code: %w", err)
	}
	return true, nil
}

// DeleteExpired purges codes past their expiry and returns how many were removed.
func (r *ResetCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired reset codes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired reset codes rows: %w", err)
	}
	return n, nil
}
