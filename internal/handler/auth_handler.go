package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/zyu-enrollment-api/internal/middleware"
	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/pkg/response"
)

type authService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	SendResetCode(ctx context.Context, req models.SendResetCodeRequest) error
	VerifyResetCode(ctx context.Context, req models.VerifyResetCodeRequest) (*models.VerifyResetCodeResponse, error)
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
	ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error
}

// CookieConfig controls the session cookies set at login.
type CookieConfig struct {
	MaxAge time.Duration
	Secure bool
	Domain string
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
	cookies CookieConfig
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, cookies CookieConfig) *AuthHandler {
	if cookies.MaxAge <= 0 {
		cookies.MaxAge = time.Hour
	}
	return &AuthHandler{service: svc, cookies: cookies}
}

// Register godoc
// @Summary Register a student account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req, "Please provide name, email and password.") {
		return
	}
	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, "Registration successful", res)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticates by email and password and sets the auth and user cookies.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req, "invalid login payload") {
		return
	}
	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	userJSON, err := json.Marshal(res.User)
	if err != nil {
		response.Error(c, err)
		return
	}
	maxAge := int(h.cookies.MaxAge.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookie, res.AccessToken, maxAge, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(middleware.UserCookie, url.QueryEscape(string(userJSON)), maxAge, "/", h.cookies.Domain, h.cookies.Secure, true)

	response.Message(c, http.StatusOK, "Login successful", res)
}

// Logout godoc
// @Summary Clear session cookies
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(middleware.UserCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	response.Message(c, http.StatusOK, "Logged out", nil)
}

// SendResetCode godoc
// @Summary Email a password reset code
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SendResetCodeRequest true "Email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/password-reset/send [post]
func (h *AuthHandler) SendResetCode(c *gin.Context) {
	var req models.SendResetCodeRequest
	if !bindJSON(c, &req, "Email is required") {
		return
	}
	if err := h.service.SendResetCode(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Reset code sent to your email", nil)
}

// VerifyResetCode godoc
// @Summary Exchange a reset code for a reset token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.VerifyResetCodeRequest true "Email and code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/password-reset/verify [post]
func (h *AuthHandler) VerifyResetCode(c *gin.Context) {
	var req models.VerifyResetCodeRequest
	if !bindJSON(c, &req, "Email and code required") {
		return
	}
	res, err := h.service.VerifyResetCode(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Code verified", res)
}

// ResetPassword godoc
// @Summary Set a new password with a reset token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ResetPasswordRequest true "Reset payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/password-reset/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if !bindJSON(c, &req, "Missing fields") {
		return
	}
	if err := h.service.ResetPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Password reset successful. Please login.", nil)
}

// ChangePassword godoc
// @Summary Change password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ChangePasswordRequest true "Change password"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req, "Both old and new password are required") {
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Password updated", nil)
}
