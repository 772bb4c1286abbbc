package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request identifier on the wire, inbound
	// and outbound.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key the identifier is stored under.
	// LoggerMiddleware attaches it to every request log line and
	// AuditMiddleware stamps it onto the audit event for the same request,
	// so one ID ties a client call to both trails.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware assigns every request an identifier. An inbound
// X-Request-ID (from a proxy or a retrying client) is reused unchanged so the
// caller's correlation survives into our logs; otherwise a fresh UUID v4 is
// generated. The ID is stored under RequestIDKey and echoed back in the
// response header.
//
// Register it ahead of logging and audit middleware so both see the ID:
//
//	router.Use(gin.Recovery())
//	router.Use(RequestIDMiddleware())
//	router.Use(MetricsMiddleware())
//	router.Use(LoggerMiddleware(cfg))
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
