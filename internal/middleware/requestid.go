package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/herald-backend/internal/reqctx"
)

// RequestID tags every request with a correlation id, reusing X-Request-ID
// when the caller sends one.
func RequestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rid := c.Request().Header.Get(echo.HeaderXRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, rid)
		c.SetRequest(c.Request().WithContext(reqctx.WithRID(c.Request().Context(), rid)))
		return next(c)
	}
}
