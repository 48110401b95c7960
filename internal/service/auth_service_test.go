package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	createErr error
	created   []*models.User
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	m := &mockAuthRepo{users: map[string]*models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	u, err := m.FindByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return u.ID != excludeID, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "new-user"
	m.users[user.ID] = user
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthRepo) RecordFailedLogin(ctx context.Context, id string, maxAttempts int) (int, models.UserStatus, error) {
	u := m.users[id]
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		u.Status = models.UserStatusInactive
	}
	return u.FailedLoginAttempts, u.Status, nil
}

func (m *mockAuthRepo) ResetLoginState(ctx context.Context, id string) error {
	u := m.users[id]
	u.FailedLoginAttempts = 0
	u.Status = models.UserStatusActive
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.users[id].PasswordHash = passwordHash
	return nil
}

func (m *mockAuthRepo) ResetPassword(ctx context.Context, id, expectedHash, newHash string) error {
	u := m.users[id]
	if u.PasswordHash != expectedHash {
		return repository.ErrStaleState
	}
	u.PasswordHash = newHash
	u.FailedLoginAttempts = 0
	u.Status = models.UserStatusActive
	return nil
}

type memoryCodeStore struct {
	codes map[string]models.PasswordResetCode
}

func (m *memoryCodeStore) Upsert(ctx context.Context, code *models.PasswordResetCode) error {
	if m.codes == nil {
		m.codes = map[string]models.PasswordResetCode{}
	}
	m.codes[strings.ToLower(code.Email)] = *code
	return nil
}

func (m *memoryCodeStore) Consume(ctx context.Context, email, codeHash string, now time.Time) (bool, error) {
	key := strings.ToLower(email)
	code, ok := m.codes[key]
	if !ok || code.CodeHash != codeHash || !code.ExpiresAt.After(now) {
		return false, nil
	}
	delete(m.codes, key)
	return true, nil
}

type capturingNotifier struct {
	email string
	code  string
	err   error
}

func (c *capturingNotifier) SendResetCode(ctx context.Context, email, code string, ttl time.Duration) error {
	c.email, c.code = email, code
	return c.err
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestAuthService(repo *mockAuthRepo, codes *memoryCodeStore, notifier *capturingNotifier) *AuthService {
	return NewAuthService(repo, codes, notifier, nil, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		MaxFailedLogins:   3,
	})
}

func studentUser(t *testing.T) *models.User {
	return &models.User{ID: "u1", Email: "ana@zyu.edu", Name: "Ana", PasswordHash: hashed(t, "secret123"), Role: models.RoleStudent, Status: models.UserStatusActive}
}

func TestRegisterRejectsWeakPasswords(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), &memoryCodeStore{}, &capturingNotifier{})

	cases := map[string]string{
		"short":                     "abc123",
		"no digit":                  "abcdefgh",
		"no letter":                 "12345678",
		"five multibyte characters": "ääää1",
		"cyrillic letters only":     "пароль12",
		"arabic-indic digit only":   "abcdefg٣",
		"accented letters no ascii": "éééééé12",
	}
	for name, password := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@zyu.edu", Name: "A", Password: password})
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo(studentUser(t))
	svc := newTestAuthService(repo, &memoryCodeStore{}, &capturingNotifier{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "ANA@zyu.edu", Name: "Other", Password: "password1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "Email already registered. Please login.", appErrors.FromError(err).Message)
}

func TestRegisterRaceMapsToConflict(t *testing.T) {
	repo := newMockAuthRepo()
	repo.createErr = repository.ErrDuplicate
	svc := newTestAuthService(repo, &memoryCodeStore{}, &capturingNotifier{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "new@zyu.edu", Name: "New", Password: "password1"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestRegisterCreatesStudent(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, &memoryCodeStore{}, &capturingNotifier{})

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: " new@zyu.edu ", Name: "New", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "new@zyu.edu", res.Email)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.RoleStudent, repo.created[0].Role)
	assert.NotEqual(t, "password1", repo.created[0].PasswordHash)
}

func TestRegisterStoresNormalizedEmail(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, &memoryCodeStore{}, &capturingNotifier{})

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "  New.Student@ZYU.edu ", Name: "New", Password: "pässword1"})
	require.NoError(t, err)
	assert.Equal(t, "new.student@zyu.edu", res.Email)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "new.student@zyu.edu", repo.created[0].Email)
}

func TestCreateStaffUsesStaffRole(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, &memoryCodeStore{}, &capturingNotifier{})

	_, err := svc.CreateStaff(context.Background(), models.RegisterRequest{Email: "staff@zyu.edu", Name: "Registrar", Password: "password1"})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.RoleStaff, repo.created[0].Role)
	assert.Equal(t, models.UserStatusActive, repo.created[0].Status)
}

func TestLoginSuccessIssuesValidToken(t *testing.T) {
	user := studentUser(t)
	user.FailedLoginAttempts = 2
	repo := newMockAuthRepo(user)
	svc := newTestAuthService(repo, &memoryCodeStore{}, &capturingNotifier{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@zyu.edu", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Zero(t, user.FailedLoginAttempts)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginLocksAfterThreeFailures(t *testing.T) {
	user := studentUser(t)
	repo := newMockAuthRepo(user)
	svc := newTestAuthService(repo, &memoryCodeStore{}, &capturingNotifier{})
	req := models.LoginRequest{Email: "ana@zyu.edu", Password: "wrongpass1"}

	_, err := svc.Login(context.Background(), req)
	assert.Equal(t, "Wrong password. You have 2 attempts left.", appErrors.FromError(err).Message)
	_, err = svc.Login(context.Background(), req)
	assert.Equal(t, "Wrong password. You have 1 attempts left.", appErrors.FromError(err).Message)

	_, err = svc.Login(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrAccountLocked)
	assert.Equal(t, models.UserStatusInactive, user.Status)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ana@zyu.edu", Password: "secret123"})
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), &memoryCodeStore{}, &capturingNotifier{})
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@zyu.edu", Password: "secret123"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestPasswordResetFlow(t *testing.T) {
	user := studentUser(t)
	user.Status = models.UserStatusInactive
	user.FailedLoginAttempts = 3
	repo := newMockAuthRepo(user)
	codes := &memoryCodeStore{}
	notifier := &capturingNotifier{}
	svc := newTestAuthService(repo, codes, notifier)
	ctx := context.Background()

	require.NoError(t, svc.SendResetCode(ctx, models.SendResetCodeRequest{Email: "ana@zyu.edu"}))
	require.Len(t, notifier.code, 6)
	assert.NotEqual(t, notifier.code, codes.codes["ana@zyu.edu"].CodeHash)

	verified, err := svc.VerifyResetCode(ctx, models.VerifyResetCodeRequest{Email: "ana@zyu.edu", Code: notifier.code})
	require.NoError(t, err)

	_, err = svc.VerifyResetCode(ctx, models.VerifyResetCodeRequest{Email: "ana@zyu.edu", Code: notifier.code})
	assert.ErrorIs(t, err, appErrors.ErrInvalidResetCode)

	reset := models.ResetPasswordRequest{ResetToken: verified.ResetToken, NewPassword: "newpass99", ConfirmPassword: "newpass99"}
	require.NoError(t, svc.ResetPassword(ctx, reset))
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.Zero(t, user.FailedLoginAttempts)

	err = svc.ResetPassword(ctx, models.ResetPasswordRequest{ResetToken: verified.ResetToken, NewPassword: "another99", ConfirmPassword: "another99"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidResetCode)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "ana@zyu.edu", Password: "newpass99"})
	assert.NoError(t, err)
}

func TestVerifyResetCodeExpired(t *testing.T) {
	repo := newMockAuthRepo(studentUser(t))
	codes := &memoryCodeStore{}
	notifier := &capturingNotifier{}
	svc := newTestAuthService(repo, codes, notifier)
	ctx := context.Background()

	require.NoError(t, svc.SendResetCode(ctx, models.SendResetCodeRequest{Email: "ana@zyu.edu"}))
	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	_, err := svc.VerifyResetCode(ctx, models.VerifyResetCodeRequest{Email: "ana@zyu.edu", Code: notifier.code})
	assert.ErrorIs(t, err, appErrors.ErrInvalidResetCode)
}

func TestSendResetCodeUnknownEmail(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), &memoryCodeStore{}, &capturingNotifier{})
	err := svc.SendResetCode(context.Background(), models.SendResetCodeRequest{Email: "ghost@zyu.edu"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	err = svc.SendResetCode(context.Background(), models.SendResetCodeRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSendResetCodeQueueFailure(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(studentUser(t)), &memoryCodeStore{}, &capturingNotifier{err: errors.New("queue full")})
	err := svc.SendResetCode(context.Background(), models.SendResetCodeRequest{Email: "ana@zyu.edu"})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestResetPasswordMismatch(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), &memoryCodeStore{}, &capturingNotifier{})
	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{ResetToken: "x", NewPassword: "newpass99", ConfirmPassword: "newpass98"})
	assert.Equal(t, "Passwords do not match", appErrors.FromError(err).Message)
}

func TestValidateTokenRejectsResetToken(t *testing.T) {
	user := studentUser(t)
	svc := newTestAuthService(newMockAuthRepo(user), &memoryCodeStore{}, &capturingNotifier{})

	token, err := svc.generateResetToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestChangePassword(t *testing.T) {
	user := studentUser(t)
	svc := newTestAuthService(newMockAuthRepo(user), &memoryCodeStore{}, &capturingNotifier{})
	ctx := context.Background()

	err := svc.ChangePassword(ctx, "u1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "fresh1234"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.ChangePassword(ctx, "u1", models.ChangePasswordRequest{OldPassword: "secret123", NewPassword: "fresh1234"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("fresh1234")))
}

func TestGenerateNumericCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateNumericCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.NotEqual(t, byte('0'), code[0])
	}
}
