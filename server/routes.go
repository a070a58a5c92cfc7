package server

import (
	"net/http"
	"time"

	"github.com/fitaccessng/qring-backend/limiter"
	"github.com/fitaccessng/qring-backend/metrics"
	custommiddleware "github.com/fitaccessng/qring-backend/middleware"
	"github.com/labstack/echo/v4"
)

func (s *Server) SetupRoutes(authMiddleware echo.MiddlewareFunc, rateLimiter *limiter.Manager) {
	e := s.Echo

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))

	rateLimit := custommiddleware.RateLimitMiddleware(
		rateLimiter,
		s.Config.Limiter.VisitorLimit,
		time.Duration(s.Config.Limiter.VisitorWindowSeconds)*time.Second,
	)

	api := e.Group("/api/v1")

	// Public visitor surface (the scan path)
	api.GET("/qr/:qrId", s.VisitorHandler.ResolveQR, rateLimit)
	visitor := api.Group("/visitor")
	{
		visitor.POST("/request", s.VisitorHandler.CreateRequest, rateLimit)
		visitor.GET("/sessions/:id", s.VisitorHandler.SessionStatus)
		visitor.GET("/sessions/:id/messages", s.VisitorHandler.SessionMessages)
	}

	// Realtime gateway; connections authenticate themselves, so no
	// auth middleware here.
	ws := e.Group("/ws")
	{
		ws.GET("/dashboard", s.Gateway.HandleDashboard)
		ws.GET("/signaling", s.Gateway.HandleSignaling)
	}

	// Homeowner surface
	protected := api.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/dashboard/overview", s.DashboardHandler.Overview)

		sessions := protected.Group("/sessions")
		{
			sessions.POST("/:id/approve", s.SessionHandler.Approve)
			sessions.POST("/:id/reject", s.SessionHandler.Reject)
			sessions.POST("/:id/close", s.SessionHandler.Close)
			sessions.GET("/:id/online", s.SessionHandler.Online)
			sessions.GET("/:id/messages", s.SessionHandler.Messages)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", s.NotificationHandler.List)
			notifications.POST("/:id/read", s.NotificationHandler.MarkRead)
			notifications.POST("/read-all", s.NotificationHandler.MarkAllRead)
		}
	}
}
