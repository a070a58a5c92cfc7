package middleware

import (
	"net/http"
	"time"

	"github.com/fitaccessng/qring-backend/limiter"
	"github.com/labstack/echo/v4"
)

// RateLimitMiddleware guards the public visitor endpoints with a
// per-IP budget. When the limiter itself errors (redis down) the
// request passes; availability beats throttling on the scan path.
func RateLimitMiddleware(manager *limiter.Manager, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if manager == nil {
				return next(c)
			}
			key := "ratelimit:visitor:" + c.RealIP()
			allowed, err := manager.Allow(c.Request().Context(), key, limit, window)
			if err != nil {
				return next(c)
			}
			if !allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "too many requests",
				})
			}
			return next(c)
		}
	}
}
