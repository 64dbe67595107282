// Package middleware holds the echo middleware shared by every route group:
// request identifiers, request logging, panic recovery, and per-request
// deadlines. Authorization is an external collaborator concern and is not
// handled here.
package middleware

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	requestIDKey    = "request_id"
	headerRequestID = "X-Request-ID"
	// HeaderActorID carries the authenticated user's local ID, stamped by
	// the fronting auth layer.
	HeaderActorID = "X-User-ID"
)

// RequestID assigns each request an identifier, honoring one supplied by the
// caller, and echoes it back on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(headerRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set(requestIDKey, rid)
			c.Response().Header().Set(headerRequestID, rid)
			return next(c)
		}
	}
}

// Actor returns the acting user's ID from the request, nil when the request
// is anonymous or the header is malformed.
func Actor(c echo.Context) *int64 {
	raw := c.Request().Header.Get(HeaderActorID)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
