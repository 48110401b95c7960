package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

const resetTokenPurpose = "password_reset"

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	RecordFailedLogin(ctx context.Context, id string, maxAttempts int) (int, models.UserStatus, error)
	ResetLoginState(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	ResetPassword(ctx context.Context, id, expectedHash, newHash string) error
}

type resetCodeStore interface {
	Upsert(ctx context.Context, code *models.PasswordResetCode) error
	Consume(ctx context.Context, email, codeHash string, now time.Time) (bool, error)
}

type resetNotifier interface {
	SendResetCode(ctx context.Context, email, code string, ttl time.Duration) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	ResetTokenExpiry  time.Duration
	Issuer            string
	MaxFailedLogins   int
	ResetCodeTTL      time.Duration
	ResetCodeLength   int
}

// AuthService provides authentication use cases.
type AuthService struct {
	repo      authUserRepository
	codes     resetCodeStore
	notifier  resetNotifier
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, codes resetCodeStore, notifier resetNotifier, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = time.Hour
	}
	if config.ResetTokenExpiry <= 0 {
		config.ResetTokenExpiry = 15 * time.Minute
	}
	if config.MaxFailedLogins <= 0 {
		config.MaxFailedLogins = 3
	}
	if config.ResetCodeTTL <= 0 {
		config.ResetCodeTTL = 15 * time.Minute
	}
	if config.ResetCodeLength < 4 {
		config.ResetCodeLength = 6
	}
	return &AuthService{
		repo:      repo,
		codes:     codes,
		notifier:  notifier,
		validator: ensureValidator(validate),
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// AccessTokenTTL reports how long issued access tokens live.
func (s *AuthService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenExpiry
}

// Register creates an ACTIVE student account.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	return s.createAccount(ctx, req, models.RoleStudent)
}

// CreateStaff creates an ACTIVE staff account. Only the operator CLI calls it.
func (s *AuthService) CreateStaff(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	return s.createAccount(ctx, req, models.RoleStaff)
}

func (s *AuthService) createAccount(ctx context.Context, req models.RegisterRequest, role models.UserRole) (*models.RegisterResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" || req.Password == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Please provide name, email and password.")
	}
	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "Invalid email address")
	}

	taken, err := s.repo.EmailTaken(ctx, req.Email, "")
	if err != nil {
		return nil, internalError(err, "failed to check email")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "Email already registered. Please login.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}
	user := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.UserStatusActive,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Email already registered. Please login.")
		}
		return nil, internalError(err, "failed to create account")
	}

	s.logger.Info("account registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return &models.RegisterResponse{ID: user.ID, Email: user.Email}, nil
}

// Login authenticates a user and returns an access token. Wrong passwords count towards a
// lockout; the locked account stays INACTIVE until a password reset.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "Email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "User not found")
		}
		return nil, internalError(err, "failed to fetch user")
	}

	if user.Status == models.UserStatusInactive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "Account inactive. Please use Forgot Password to recover your account.")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		attempts, status, recErr := s.repo.RecordFailedLogin(ctx, user.ID, s.config.MaxFailedLogins)
		if recErr != nil {
			return nil, internalError(recErr, "failed to record login attempt")
		}
		locked := status == models.UserStatusInactive
		s.metrics.RecordLoginFailure(locked)
		if locked {
			s.logger.Warn("account locked after failed logins", zap.String("user_id", user.ID), zap.Int("attempts", attempts))
			return nil, appErrors.Clone(appErrors.ErrAccountLocked, "Account locked due to multiple failed attempts. Please use Forgot Password.")
		}
		left := s.config.MaxFailedLogins - attempts
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, fmt.Sprintf("Wrong password. You have %d attempts left.", left))
	}

	if user.FailedLoginAttempts > 0 {
		if err := s.repo.ResetLoginState(ctx, user.ID); err != nil {
			return nil, internalError(err, "failed to reset login state")
		}
	}

	issuedAt := s.now().UTC()
	accessToken, err := s.generateAccessToken(user, issuedAt)
	if err != nil {
		return nil, internalError(err, "failed to create access token")
	}

	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User: models.UserInfo{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
	}, nil
}

// SendResetCode stores a fresh reset code for the account and queues the email. A new code
// replaces any earlier one.
func (s *AuthService) SendResetCode(ctx context.Context, req models.SendResetCodeRequest) error {
	if strings.TrimSpace(req.Email) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "Email is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "Invalid email address")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return internalError(err, "failed to fetch user")
	}

	code, err := generateNumericCode(s.config.ResetCodeLength)
	if err != nil {
		return internalError(err, "failed to generate reset code")
	}
	now := s.now().UTC()
	record := &models.PasswordResetCode{
		Email:     user.Email,
		CodeHash:  hashResetCode(code),
		ExpiresAt: now.Add(s.config.ResetCodeTTL),
		CreatedAt: now,
	}
	if err := s.codes.Upsert(ctx, record); err != nil {
		return internalError(err, "failed to store reset code")
	}
	if err := s.notifier.SendResetCode(ctx, user.Email, code, s.config.ResetCodeTTL); err != nil {
		s.logger.Error("failed to queue reset code email", zap.String("user_id", user.ID), zap.Error(err))
		return internalError(err, "failed to send reset code")
	}
	return nil
}

// VerifyResetCode consumes the code and returns a reset token. A code verifies at most once.
func (s *AuthService) VerifyResetCode(ctx context.Context, req models.VerifyResetCodeRequest) (*models.VerifyResetCodeResponse, error) {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Email and code required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidResetCode, "Invalid or expired code")
	}

	ok, err := s.codes.Consume(ctx, req.Email, hashResetCode(strings.TrimSpace(req.Code)), s.now().UTC())
	if err != nil {
		return nil, internalError(err, "failed to verify reset code")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidResetCode, "Invalid or expired code")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, internalError(err, "failed to fetch user")
	}

	token, err := s.generateResetToken(user)
	if err != nil {
		return nil, internalError(err, "failed to create reset token")
	}
	return &models.VerifyResetCodeResponse{
		ResetToken: token,
		ExpiresIn:  int64(s.config.ResetTokenExpiry.Seconds()),
	}, nil
}

// ResetPassword sets a new password using a reset token. The token is bound to the password
// hash it was issued against, so it stops working after the first successful reset.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if req.ResetToken == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return appErrors.Clone(appErrors.ErrValidation, "Missing fields")
	}
	if req.NewPassword != req.ConfirmPassword {
		return appErrors.Clone(appErrors.ErrValidation, "Passwords do not match")
	}
	if passwordProblem(req.NewPassword) != "" {
		return appErrors.Clone(appErrors.ErrValidation, "Password must be at least 8 characters and include letters and numbers")
	}

	claims, err := s.parseResetToken(req.ResetToken)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidResetCode.Code, appErrors.ErrInvalidResetCode.Status, "Invalid or expired reset token")
	}

	user, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return internalError(err, "failed to fetch user")
	}
	if !hmac.Equal([]byte(s.fingerprint(user.PasswordHash)), []byte(claims.Fingerprint)) {
		return appErrors.Clone(appErrors.ErrInvalidResetCode, "Invalid or expired reset token")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return internalError(err, "failed to hash password")
	}
	if err := s.repo.ResetPassword(ctx, user.ID, user.PasswordHash, string(newHash)); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return appErrors.Clone(appErrors.ErrInvalidResetCode, "Invalid or expired reset token")
		}
		return internalError(err, "failed to reset password")
	}

	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

// ChangePassword changes the password for the given user ID.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if req.OldPassword == "" || req.NewPassword == "" {
		return appErrors.Clone(appErrors.ErrValidation, "Both old and new password are required")
	}
	if err := checkPassword(req.NewPassword); err != nil {
		return err
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return internalError(err, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "Current password is incorrect")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return internalError(err, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(newHash)); err != nil {
		return internalError(err, "failed to update password")
	}
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, s.keyFunc, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" || claims.Role == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(s.config.AccessTokenSecret), nil
}

func (s *AuthService) generateAccessToken(user *models.User, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) generateResetToken(user *models.User) (string, error) {
	issuedAt := s.now().UTC()
	claims := &models.ResetClaims{
		Email:       user.Email,
		Purpose:     resetTokenPurpose,
		Fingerprint: s.fingerprint(user.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.ResetTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) parseResetToken(tokenString string) (*models.ResetClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.ResetClaims{}, s.keyFunc, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*models.ResetClaims)
	if !ok || !token.Valid || claims.Purpose != resetTokenPurpose || claims.Subject == "" {
		return nil, errors.New("not a reset token")
	}
	return claims, nil
}

// fingerprint ties a reset token to the password hash current at issue time.
func (s *AuthService) fingerprint(passwordHash string) string {
	mac := hmac.New(sha256.New, []byte(s.config.AccessTokenSecret))
	mac.Write([]byte(passwordHash))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

func hashResetCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// generateNumericCode returns a random decimal code of the given length with a non-zero
// leading digit.
func generateNumericCode(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		max := int64(10)
		offset := int64(0)
		if i == 0 {
			max, offset = 9, 1
		}
		n, err := rand.Int(rand.Reader, big.NewInt(max))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64() + offset))
	}
	return b.String(), nil
}
