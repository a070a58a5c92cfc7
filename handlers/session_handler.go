package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/fitaccessng/qring-backend/gateway"
	"github.com/fitaccessng/qring-backend/models"
	"github.com/fitaccessng/qring-backend/services"
	"github.com/labstack/echo/v4"
)

type SessionHandler struct {
	sessions      *services.SessionService
	notifications *services.NotificationService
	gw            *gateway.Gateway
}

func NewSessionHandler(sessions *services.SessionService,
	notifications *services.NotificationService, gw *gateway.Gateway) *SessionHandler {
	return &SessionHandler{
		sessions:      sessions,
		notifications: notifications,
		gw:            gw,
	}
}

func (h *SessionHandler) Approve(c echo.Context) error {
	return h.transition(c, "approve", models.SessionApproved)
}

func (h *SessionHandler) Reject(c echo.Context) error {
	return h.transition(c, "reject", models.SessionRejected)
}

func (h *SessionHandler) Close(c echo.Context) error {
	return h.transition(c, "close", models.SessionClosed)
}

// transition applies a homeowner's decision and fans it out: a
// session.control broadcast to the session room so the opposite party
// reacts, plus a dashboard activity patch.
func (h *SessionHandler) transition(c echo.Context, action, target string) error {
	user := c.Get("user").(*models.User)
	sessionID := c.Param("id")

	session, err := h.sessions.Get(sessionID)
	if errors.Is(err, services.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "database error"})
	}
	if session.HomeownerID != user.ID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "not your session"})
	}

	session, err = h.sessions.Transition(sessionID, target)
	if errors.Is(err, services.ErrInvalidTransition) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update session"})
	}

	h.gw.PublishSessionControl(session.ID, action)
	h.gw.PublishActivity(session.HomeownerID, map[string]interface{}{
		"id":    session.ID,
		"event": "Session " + session.Status + " at door " + session.DoorID,
		"time":  time.Now().UTC().Format(time.RFC3339Nano),
		"state": session.Status,
	})

	if err := h.notifications.Notify(session.HomeownerID, "session."+action, map[string]interface{}{
		"sessionId": session.ID,
		"doorId":    session.DoorID,
		"status":    session.Status,
	}); err != nil {
		log.Printf("session notification failed: %v", err)
	}

	return c.JSON(http.StatusOK, session)
}

// Online lists the session room's live occupants from the redis
// mirror (or the in-process table when redis is absent).
func (h *SessionHandler) Online(c echo.Context) error {
	sessionID := c.Param("id")
	occupants, err := h.gw.Occupancy(c.Request().Context(), sessionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch online users",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"count":      len(occupants),
		"users":      occupants,
	})
}

func (h *SessionHandler) Messages(c echo.Context) error {
	user := c.Get("user").(*models.User)
	sessionID := c.Param("id")

	session, err := h.sessions.Get(sessionID)
	if errors.Is(err, services.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "database error"})
	}
	if session.HomeownerID != user.ID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "not your session"})
	}

	rows, err := h.sessions.SessionMessages(sessionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch messages"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": transcript(rows)})
}
