package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/zyu-enrollment-api/internal/middleware"
	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/pkg/response"
)

type profileService interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.Profile, error)
	DeleteAccount(ctx context.Context, userID string) error
}

// UserHandler serves the caller's own profile.
type UserHandler struct {
	service profileService
	cookies CookieConfig
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc profileService, cookies CookieConfig) *UserHandler {
	return &UserHandler{service: svc, cookies: cookies}
}

// Me godoc
// @Summary Current user profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /profile [get]
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Update godoc
// @Summary Update name, email or password
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body models.UpdateProfileRequest true "Profile changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /profile [put]
func (h *UserHandler) Update(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}
	profile, err := h.service.UpdateProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Profile updated successfully", profile)
}

// Delete godoc
// @Summary Delete own account
// @Description Removes the account with its enrollments, to-do items and reset codes, then clears cookies.
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /profile [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.service.DeleteAccount(c.Request.Context(), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	c.SetCookie(middleware.AuthCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(middleware.UserCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	response.Message(c, http.StatusOK, "Account deleted successfully", nil)
}
