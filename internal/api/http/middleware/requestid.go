package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
)

const (
	HeaderRequestID = "X-Request-Id"

	maxRequestIDLen = 64
)

// RequestID tags each request with an id, reusing a well-formed incoming
// X-Request-Id so a proxy's id survives into our logs.
func RequestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		rid := c.Get(HeaderRequestID)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(HeaderRequestID, rid)

		c.SetContext(reqctx.WithRequestMeta(c.Context(), &reqctx.RequestMeta{
			RequestID: rid,
			ClientIP:  c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
			StartedAt: time.Now(),
		}))
		return c.Next()
	}
}

// validRequestID keeps log injection out: ids are short and limited to
// letters, digits, '-', '_' and '.'.
func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9', b == '-', b == '_', b == '.':
		default:
			return false
		}
	}
	return true
}

// RequestIDFromFiber returns the id RequestID assigned, if it ran.
func RequestIDFromFiber(c fiber.Ctx) (string, bool) {
	rid := reqctx.RequestIDFromContext(c.Context())
	return rid, rid != ""
}
