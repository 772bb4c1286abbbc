// Package middleware provides Gin HTTP middleware for authentication, rate
// limiting, security headers, request IDs, and Prometheus instrumentation.
//
// Middleware ordering matters and is enforced in router.go:
//
//	RequestID → Metrics → Security → RateLimit → Auth → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force token guessing before
// any DB work. Auth resolves the presented credential and populates the key
// identity in the request context.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/log-center/log-center/internal/auth"
	"github.com/log-center/log-center/internal/db/repositories"
	"github.com/log-center/log-center/internal/telemetry"
)

// Credential headers. Admin and operational credentials travel in different
// headers and are resolved against different key tables, so an admin token
// presented on an operational route (or vice versa) never authenticates.
const (
	AdminKeyHeader       = "X-Admin-API-Key"
	OperationalKeyHeader = "X-API-Key"
)

// Context keys set by the auth middlewares.
const (
	// APIKeyKey holds the presented credential token (string).
	APIKeyKey = "api_key"
	// KeyOwnerKey holds the owner email of the resolved key (string).
	KeyOwnerKey = "key_owner"
	// KeyKindKey holds the kind of the resolved key (models.KeyKind).
	KeyKindKey = "key_kind"
	// KeyProcessKey holds the process name bound to a process key (string).
	// Absent for user and admin keys.
	KeyProcessKey = "key_process"
)

// AdminAuthMiddleware authenticates requests against active admin keys.
// Only the admin key table is consulted; user and process keys are rejected.
func AdminAuthMiddleware(keyRepo *repositories.APIKeyRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(AdminKeyHeader)
		if token == "" {
			telemetry.AuthFailuresTotal.WithLabelValues("admin").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing " + AdminKeyHeader + " header",
			})
			return
		}

		// Reject malformed tokens before touching the database
		if !auth.ValidToken(token) {
			telemetry.AuthFailuresTotal.WithLabelValues("admin").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid admin API key",
			})
			return
		}

		key, err := keyRepo.FindActiveAdminByToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				telemetry.AuthFailuresTotal.WithLabelValues("admin").Inc()
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid admin API key",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Authentication failed",
			})
			return
		}

		c.Set(APIKeyKey, key.Token)
		c.Set(KeyOwnerKey, key.OwnerEmail)
		c.Set(KeyKindKey, key.Kind)

		c.Next()
	}
}

// OperationalAuthMiddleware authenticates requests against active user and
// process keys. Admin keys are not valid here.
func OperationalAuthMiddleware(keyRepo *repositories.APIKeyRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(OperationalKeyHeader)
		if token == "" {
			telemetry.AuthFailuresTotal.WithLabelValues("operational").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing " + OperationalKeyHeader + " header",
			})
			return
		}

		if !auth.ValidToken(token) {
			telemetry.AuthFailuresTotal.WithLabelValues("operational").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		key, err := keyRepo.FindActiveOperationalByToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				telemetry.AuthFailuresTotal.WithLabelValues("operational").Inc()
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid API key",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Authentication failed",
			})
			return
		}

		c.Set(APIKeyKey, key.Token)
		c.Set(KeyOwnerKey, key.OwnerEmail)
		c.Set(KeyKindKey, key.Kind)
		if key.ProcessName != nil {
			c.Set(KeyProcessKey, *key.ProcessName)
		}

		c.Next()
	}
}
