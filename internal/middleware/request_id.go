package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	CtxRequestID    = "request_id"
	HeaderRequestID = "X-Request-ID"

	maxRequestIDLen = 64
)

// RequestIDMiddleware propagates a caller-supplied X-Request-ID so logs and
// notifications can be correlated across services. Missing or malformed ids
// are replaced with a fresh UUID.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(HeaderRequestID)
		if !validRequestID(reqID) {
			reqID = uuid.NewString()
		}
		c.Locals(CtxRequestID, reqID)
		c.Set(HeaderRequestID, reqID)
		return c.Next()
	}
}

// validRequestID admits ids that are safe to echo into headers and logs.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}

// GetRequestID returns the id assigned by RequestIDMiddleware.
func GetRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(CtxRequestID).(string)
	return id
}
