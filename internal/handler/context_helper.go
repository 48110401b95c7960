package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/zyu-enrollment-api/internal/middleware"
	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
	"github.com/noah-isme/zyu-enrollment-api/pkg/response"
)

// currentUser returns the caller's claims or writes a 401.
func currentUser(c *gin.Context) (*models.JWTClaims, bool) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "Not authenticated"))
		return nil, false
	}
	return claims, true
}

// bindJSON decodes the body into dest or writes a 400 with message.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// respondWithMeta sends data along with the request's collected metadata.
func respondWithMeta(c *gin.Context, data interface{}) {
	response.JSON(c, http.StatusOK, data, nil, middleware.ExtractMeta(c))
}
