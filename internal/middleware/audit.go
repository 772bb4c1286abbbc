// audit.go records mutating admin requests as audit events. The middleware
// runs after authentication so the actor's identity is already resolved, and
// ships asynchronously so a slow audit destination never adds latency to the
// request path.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/log-center/log-center/internal/audit"
	"github.com/log-center/log-center/internal/safego"
)

// auditShipTimeout bounds delivery of one event to a slow destination.
const auditShipTimeout = 10 * time.Second

// AuditMiddleware ships one audit event per mutating request. Reads are not
// recorded. The action is the route template (method plus path pattern), the
// resource is the matched path parameter when the route has one.
func AuditMiddleware(shipper audit.Shipper) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions {
			return
		}

		event := &audit.Event{
			Timestamp:  time.Now().UTC(),
			Action:     c.Request.Method + " " + c.FullPath(),
			Actor:      c.GetString(KeyOwnerKey),
			IPAddress:  c.ClientIP(),
			StatusCode: c.Writer.Status(),
			RequestID:  c.GetString(RequestIDKey),
		}
		for _, param := range c.Params {
			event.Resource = param.Value
			break
		}

		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditShipTimeout)
			defer cancel()
			_ = shipper.Ship(ctx, event)
		})
	}
}
