package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// Paths that generate constant or long-lived traffic and would drown the
// request log: Prometheus scrapes and WebSocket subscriptions.
var quietPaths = map[string]bool{
	"/metrics":    true,
	"/ws/reports": true,
}

// RequestLogging logs HTTP requests.
func RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			err := next(c)

			if quietPaths[req.URL.Path] {
				return err
			}

			latency := time.Since(start)
			log.Printf("[%s] %s %s - %d (%s)",
				req.Method,
				req.RequestURI,
				req.RemoteAddr,
				res.Status,
				latency,
			)

			return err
		}
	}
}
