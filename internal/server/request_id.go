package server

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"agrohub/internal/core"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware keeps a client-supplied X-Request-ID or generates one,
// echoes it on the response and stores it in the request context.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(requestIDHeader, id)
			c.SetRequest(req.WithContext(core.WithRequestID(req.Context(), id)))
			return next(c)
		}
	}
}
