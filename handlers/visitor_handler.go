package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fitaccessng/qring-backend/gateway"
	"github.com/fitaccessng/qring-backend/metrics"
	"github.com/fitaccessng/qring-backend/models"
	"github.com/fitaccessng/qring-backend/services"
	"github.com/labstack/echo/v4"
)

type VisitorHandler struct {
	qr            *services.QRService
	sessions      *services.SessionService
	notifications *services.NotificationService
	gw            *gateway.Gateway
	stats         *metrics.Collector
}

func NewVisitorHandler(qr *services.QRService, sessions *services.SessionService,
	notifications *services.NotificationService, gw *gateway.Gateway, stats *metrics.Collector) *VisitorHandler {
	return &VisitorHandler{
		qr:            qr,
		sessions:      sessions,
		notifications: notifications,
		gw:            gw,
		stats:         stats,
	}
}

type visitorRequest struct {
	QRID    string `json:"qrId"`
	DoorID  string `json:"doorId"`
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}

// ResolveQR serves the scan UI: door list, routing mode and per-door
// display metadata.
func (h *VisitorHandler) ResolveQR(c echo.Context) error {
	resolution, err := h.qr.Resolve(c.Param("qrId"))
	if err != nil {
		return qrError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": resolution})
}

// CreateRequest is the visitor's entry point: QR resolution, door
// routing, session creation, homeowner notification and dashboard
// fan-out.
func (h *VisitorHandler) CreateRequest(c echo.Context) error {
	var req visitorRequest
	if err := c.Bind(&req); err != nil || req.QRID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request",
		})
	}

	resolution, err := h.qr.Resolve(req.QRID)
	if err != nil {
		return qrError(c, err)
	}

	doorID, err := services.SelectDoor(resolution.Doors, resolution.Mode, req.DoorID)
	if err != nil {
		if errors.Is(err, services.ErrNoDoors) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	visitorName := strings.TrimSpace(req.Name)
	if visitorName == "" {
		visitorName = "Visitor"
	}

	session, err := h.sessions.Create(req.QRID, resolution.HomeID, doorID, visitorName)
	if err != nil {
		if errors.Is(err, services.ErrNoHomeowner) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
	}
	h.stats.VisitorRequest()

	err = h.notifications.Notify(session.HomeownerID, "visitor.request", map[string]interface{}{
		"sessionId":   session.ID,
		"doorId":      session.DoorID,
		"visitorName": visitorName,
		"purpose":     strings.TrimSpace(req.Purpose),
		"message":     "New visitor request from " + visitorName,
	})
	if err != nil {
		// Notification loss never blocks the visitor flow.
		log.Printf("visitor notification failed: %v", err)
	}

	h.gw.PublishActivity(session.HomeownerID, map[string]interface{}{
		"id":    session.ID,
		"event": "Visitor request at door " + session.DoorID,
		"time":  session.StartedAt.Format(time.RFC3339Nano),
		"state": session.Status,
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"sessionId": session.ID,
			"status":    session.Status,
		},
	})
}

// SessionStatus is the visitor's poll endpoint. Unknown ids report
// not_found instead of erroring; the visitor page keeps polling.
func (h *VisitorHandler) SessionStatus(c echo.Context) error {
	sessionID := c.Param("id")
	session, err := h.sessions.Get(sessionID)
	if errors.Is(err, services.ErrSessionNotFound) {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{
				"sessionId": sessionID,
				"status":    "not_found",
			},
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "database error"})
	}

	data := map[string]interface{}{
		"sessionId": session.ID,
		"status":    session.Status,
		"startedAt": session.StartedAt.Format(time.RFC3339Nano),
		"endedAt":   nil,
	}
	if session.EndedAt != nil {
		data["endedAt"] = session.EndedAt.Format(time.RFC3339Nano)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": data})
}

func (h *VisitorHandler) SessionMessages(c echo.Context) error {
	rows, err := h.sessions.SessionMessages(c.Param("id"))
	if errors.Is(err, services.ErrSessionNotFound) {
		return c.JSON(http.StatusOK, map[string]interface{}{"data": []interface{}{}})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch messages"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": transcript(rows)})
}

func transcript(rows []models.Message) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		displayName := "Visitor"
		if row.SenderType == models.SenderHomeowner {
			displayName = "Homeowner"
		}
		out = append(out, map[string]interface{}{
			"id":          row.ID,
			"sessionId":   row.SessionID,
			"text":        row.Body,
			"senderType":  row.SenderType,
			"displayName": displayName,
			"at":          row.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return out
}

func qrError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrQRNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrSubscriptionExpired):
		return c.JSON(http.StatusPaymentRequired, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to resolve QR"})
	}
}
