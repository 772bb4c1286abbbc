// Package api wires together all HTTP routes for the log center.
//
// Route grouping philosophy:
//   - Management routes (/users/, /admins/, /keys/) require an admin
//     credential in the X-Admin-API-Key header. Only the admin key table is
//     consulted, so operational keys can never reach these routes.
//   - Log routes (/logs/) require an operational credential (user or process
//     key) in the X-API-Key header. Admin keys are not valid there.
//   - /health, /ready and /version are unauthenticated probe endpoints.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/log-center/log-center/internal/api/admin"
	"github.com/log-center/log-center/internal/api/logs"
	"github.com/log-center/log-center/internal/audit"
	"github.com/log-center/log-center/internal/config"
	"github.com/log-center/log-center/internal/db/repositories"
	"github.com/log-center/log-center/internal/middleware"
)

// BackgroundServices holds references to background resources that must be
// stopped during graceful shutdown. The caller (cmd/server) is responsible
// for calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
	auditShipper audit.Shipper
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Error("failed to close audit shipper", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// newAuditShipper builds the configured audit destinations. A destination
// that cannot be opened is skipped with an error log rather than failing
// startup; the admin API stays usable without its audit trail.
func newAuditShipper(cfg *config.Config) *audit.MultiShipper {
	shippers := make([]audit.Shipper, 0, 2)

	if cfg.Audit.File.Enabled {
		fs, err := audit.NewFileShipper(&audit.FileConfig{
			Path:       cfg.Audit.File.Path,
			MaxSizeMB:  cfg.Audit.File.MaxSizeMB,
			MaxBackups: cfg.Audit.File.MaxBackups,
		})
		if err != nil {
			slog.Error("failed to open audit file destination", "path", cfg.Audit.File.Path, "error", err)
		} else {
			shippers = append(shippers, fs)
		}
	}

	if cfg.Audit.Webhook.Enabled {
		shippers = append(shippers, audit.NewWebhookShipper(&audit.WebhookConfig{
			URL:     cfg.Audit.Webhook.URL,
			Timeout: cfg.Audit.Webhook.Timeout,
		}))
	}

	return audit.NewMultiShipper(shippers...)
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	keyRepo := repositories.NewAPIKeyRepository(db)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint
	router.GET("/ready", readinessHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Initialize handlers
	holderHandlers := admin.NewHolderHandlers(cfg, db)
	adminHolderHandlers := admin.NewAdminHolderHandlers(cfg, db)
	keyHandlers := admin.NewAPIKeyHandlers(cfg, db)
	logHandlers := logs.NewHandlers(db)

	// Initialize rate limiters
	adminRateLimiter := middleware.NewRateLimiter(middleware.AdminRateLimitConfig())
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())

	bg := &BackgroundServices{
		rateLimiters: []*middleware.RateLimiter{adminRateLimiter, generalRateLimiter},
	}

	if !cfg.Security.RateLimiting.Enabled {
		// Limiters stay constructed (and are still stopped on shutdown) but
		// are not registered on any route group.
		adminRateLimiter = nil
		generalRateLimiter = nil
	}

	// Management endpoints — admin credential required
	adminGroup := router.Group("")
	if adminRateLimiter != nil {
		adminGroup.Use(middleware.RateLimitMiddleware(adminRateLimiter))
	}
	adminGroup.Use(middleware.AdminAuthMiddleware(keyRepo))
	if cfg.Audit.Enabled {
		shipper := newAuditShipper(cfg)
		bg.auditShipper = shipper
		adminGroup.Use(middleware.AuditMiddleware(shipper))
	}
	{
		// Operational key holder registry
		usersGroup := adminGroup.Group("/users")
		{
			usersGroup.POST("/approve", holderHandlers.ApproveHandler())
			usersGroup.POST("/deactivate", holderHandlers.DeactivateHandler())
			usersGroup.GET("/", holderHandlers.ListHandler())
			usersGroup.GET("/:email", holderHandlers.GetHandler())
		}

		// Admin key holder registry (disjoint namespace)
		adminsGroup := adminGroup.Group("/admins")
		{
			adminsGroup.POST("/approve", adminHolderHandlers.ApproveHandler())
			adminsGroup.POST("/deactivate", adminHolderHandlers.DeactivateHandler())
			adminsGroup.GET("/", adminHolderHandlers.ListHandler())
			adminsGroup.GET("/:email", adminHolderHandlers.GetHandler())
		}

		// Key lifecycle
		keysGroup := adminGroup.Group("/keys")
		{
			keysGroup.POST("/create", keyHandlers.CreateKeyHandler())
			keysGroup.POST("/deactivate/:token", keyHandlers.DeactivateKeyHandler())
			keysGroup.POST("/deactivate-by-owner/:email", keyHandlers.DeactivateByOwnerHandler())
			keysGroup.GET("/active/", keyHandlers.ListActiveHandler())
			keysGroup.GET("/active/:email", keyHandlers.ListActiveForOwnerHandler())
			keysGroup.GET("/deactivated/", keyHandlers.ListDeactivatedHandler())
		}
	}

	// Log endpoints — operational credential required
	logsGroup := router.Group("/logs")
	if generalRateLimiter != nil {
		logsGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
	}
	logsGroup.Use(middleware.OperationalAuthMiddleware(keyRepo))
	{
		logsGroup.POST("/", logHandlers.IngestHandler())
		logsGroup.GET("/", logHandlers.ListHandler())
		logsGroup.GET("/level/:level", logHandlers.ByLevelHandler())
		logsGroup.GET("/process/:process_name", logHandlers.ByProcessHandler())
		logsGroup.GET("/process/:process_name/level/:level", logHandlers.ByProcessAndLevelHandler())
		logsGroup.GET("/process/:process_name/messages/:keyword", logHandlers.ByProcessAndKeywordHandler())
		logsGroup.GET("/messages/:keyword", logHandlers.ByKeywordHandler())
		logsGroup.GET("/recent/:limit", logHandlers.RecentHandler())
		logsGroup.GET("/date/:date", logHandlers.ByDateHandler())
		logsGroup.GET("/date-range/:start/:end", logHandlers.ByDateRangeHandler())
	}

	return router, bg
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, X-Admin-API-Key, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
