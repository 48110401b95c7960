package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/zyu-enrollment-api/internal/middleware"
	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

type fakeAuthSrv struct {
	loginErr    error
	registerReq models.RegisterRequest
	changedFor  string
}

func (f *fakeAuthSrv) Register(_ context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	f.registerReq = req
	return &models.RegisterResponse{ID: "u-1", Email: req.Email}, nil
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.LoginResponse{
		AccessToken: "signed.jwt.token",
		ExpiresIn:   3600,
		User:        models.UserInfo{ID: "u-1", Email: req.Email, Name: "Ana", Role: models.RoleStudent},
	}, nil
}

func (f *fakeAuthSrv) SendResetCode(context.Context, models.SendResetCodeRequest) error {
	return nil
}

func (f *fakeAuthSrv) VerifyResetCode(context.Context, models.VerifyResetCodeRequest) (*models.VerifyResetCodeResponse, error) {
	return &models.VerifyResetCodeResponse{}, nil
}

func (f *fakeAuthSrv) ResetPassword(context.Context, models.ResetPasswordRequest) error {
	return nil
}

func (f *fakeAuthSrv) ChangePassword(_ context.Context, userID string, _ models.ChangePasswordRequest) error {
	f.changedFor = userID
	return nil
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func postJSON(c *gin.Context, path, body string) {
	c.Request = httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
}

func TestAuthHandlerLoginSetsCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{}, CookieConfig{MaxAge: time.Hour})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	postJSON(c, "/auth/login", `{"email":"ana@zyu.edu","password":"secret123"}`)

	handler.Login(c)

	require.Equal(t, http.StatusOK, rec.Code)
	auth := cookieByName(rec, middleware.AuthCookie)
	require.NotNil(t, auth)
	assert.Equal(t, "signed.jwt.token", auth.Value)
	assert.True(t, auth.HttpOnly)
	assert.Equal(t, 3600, auth.MaxAge)

	user := cookieByName(rec, middleware.UserCookie)
	require.NotNil(t, user)
	raw, err := url.QueryUnescape(user.Value)
	require.NoError(t, err)
	var info models.UserInfo
	require.NoError(t, json.Unmarshal([]byte(raw), &info))
	assert.Equal(t, "ana@zyu.edu", info.Email)
	assert.Equal(t, models.RoleStudent, info.Role)
}

func TestAuthHandlerLoginFailureSetsNoCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{loginErr: appErrors.ErrAccountLocked}, CookieConfig{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	postJSON(c, "/auth/login", `{"email":"ana@zyu.edu","password":"wrong"}`)

	handler.Login(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, cookieByName(rec, middleware.AuthCookie))
}

func TestAuthHandlerLogoutExpiresCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{}, CookieConfig{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)

	handler.Logout(c)

	require.Equal(t, http.StatusOK, rec.Code)
	for _, name := range []string{middleware.AuthCookie, middleware.UserCookie} {
		cookie := cookieByName(rec, name)
		require.NotNil(t, cookie, name)
		assert.True(t, cookie.MaxAge < 0, name)
	}
}

func TestAuthHandlerRegisterCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv, CookieConfig{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	postJSON(c, "/auth/register", `{"email":"new@zyu.edu","name":"New","password":"password1"}`)

	handler.Register(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "new@zyu.edu", srv.registerReq.Email)
}

func TestAuthHandlerChangePasswordUsesCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv, CookieConfig{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	postJSON(c, "/auth/change-password", `{"old_password":"secret123","new_password":"fresh1234"}`)
	withUser(c, "u-9", models.RoleStaff)

	handler.ChangePassword(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-9", srv.changedFor)
}
