package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/zyu-enrollment-api/internal/middleware"
	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/pkg/response"
)

type dashboardService interface {
	Dashboard(ctx context.Context) (*models.DashboardStats, bool, error)
}

// DashboardHandler exposes the staff dashboard.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Staff godoc
// @Summary Staff dashboard statistics
// @Tags Staff Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/dashboard [get]
func (h *DashboardHandler) Staff(c *gin.Context) {
	stats, hit, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	respondWithMeta(c, stats)
}
