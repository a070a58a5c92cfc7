package handlers

import (
	"net/http"

	"github.com/fitaccessng/qring-backend/models"
	"github.com/fitaccessng/qring-backend/services"
	"github.com/labstack/echo/v4"
)

type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func (h *DashboardHandler) Overview(c echo.Context) error {
	user := c.Get("user").(*models.User)
	overview, err := h.dashboard.Overview(user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to build overview",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": overview})
}
