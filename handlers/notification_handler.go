package handlers

import (
	"errors"
	"net/http"

	"github.com/fitaccessng/qring-backend/models"
	"github.com/fitaccessng/qring-backend/services"
	"github.com/labstack/echo/v4"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(c echo.Context) error {
	user := c.Get("user").(*models.User)
	rows, err := h.notifications.List(user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch notifications",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  rows,
		"total": len(rows),
	})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	user := c.Get("user").(*models.User)
	row, err := h.notifications.MarkRead(user.ID, c.Param("id"))
	if errors.Is(err, services.ErrNotificationNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "notification not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update notification"})
	}
	return c.JSON(http.StatusOK, row)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	user := c.Get("user").(*models.User)
	updated, err := h.notifications.MarkAllRead(user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update notifications"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"updated": updated})
}
