package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	DeleteAccount(ctx context.Context, id string) ([]string, error)
}

type fileRemover interface {
	Delete(name string) error
}

// UserService handles the signed-in user's own account.
type UserService struct {
	repo    profileRepository
	files   fileRemover
	uploads uploadPaths
	logger  *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo profileRepository, files fileRemover, uploadsPrefix string, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, files: files, uploads: newUploadPaths(uploadsPrefix), logger: logger}
}

// GetProfile returns the caller's profile.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.ToProfile()
	return &profile, nil
}

// UpdateProfile applies the provided changes. Nil fields are left as they are; a password
// change needs both the old and the new password.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.Profile, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed := false
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "Name is required")
		}
		if name != user.Name {
			user.Name = name
			changed = true
		}
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if !strings.Contains(email, "@") {
			return nil, appErrors.Clone(appErrors.ErrValidation, "Email must contain @")
		}
		if !strings.EqualFold(email, user.Email) {
			taken, err := s.repo.EmailTaken(ctx, email, user.ID)
			if err != nil {
				return nil, internalError(err, "failed to check email")
			}
			if taken {
				return nil, appErrors.Clone(appErrors.ErrConflict, "Email is already in use")
			}
		}
		if email != user.Email {
			user.Email = email
			changed = true
		}
	}

	var newHash []byte
	if req.OldPassword != "" || req.NewPassword != "" {
		if req.OldPassword == "" || req.NewPassword == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "Both old and new password are required")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "Old password incorrect")
		}
		if err := checkPassword(req.NewPassword); err != nil {
			return nil, err
		}
		if newHash, err = bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost); err != nil {
			return nil, internalError(err, "failed to hash password")
		}
	}

	if changed {
		if err := s.repo.UpdateProfile(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "Email is already in use")
			}
			return nil, internalError(err, "failed to update profile")
		}
	}
	if newHash != nil {
		if err := s.repo.UpdatePassword(ctx, user.ID, string(newHash)); err != nil {
			return nil, internalError(err, "failed to update password")
		}
	}

	profile := user.ToProfile()
	return &profile, nil
}

// DeleteAccount removes the account and everything it owns, then deletes the uploaded
// certificates. File cleanup is best effort; the account is gone either way.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	files, err := s.repo.DeleteAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return internalError(err, "failed to delete account")
	}

	for _, publicPath := range files {
		name, ok := s.uploads.storedName(publicPath)
		if !ok {
			continue
		}
		if err := s.files.Delete(name); err != nil {
			s.logger.Warn("failed to remove certificate file", zap.String("user_id", userID), zap.String("file", name), zap.Error(err))
		}
	}
	s.logger.Info("account deleted", zap.String("user_id", userID), zap.Int("files", len(files)))
	return nil
}

func (s *UserService) load(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, internalError(err, "failed to load user")
	}
	return user, nil
}
