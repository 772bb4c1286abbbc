// @title           Log Center API
// @version         1.0.0
// @description     Centralized log ingestion and query service gated by API keys.
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  AdminKey
// @in                          header
// @name                        X-Admin-API-Key
//
// @securityDefinitions.apiKey  OperationalKey
// @in                          header
// @name                        X-API-Key
//
// @tag.name         System
// @tag.description  Health, readiness, and version endpoints.
//
// @tag.name         Observability
// @tag.description  Prometheus metrics are served on a dedicated side-channel port (default: 9090) separate from the main API server, so the scrape path stays off the public ingress and skips rate-limiting middleware. Configure the port with LGC_TELEMETRY_METRICS_PROMETHEUS_PORT. The endpoint path is always GET /metrics.

// Package main is the entry point for the log center server binary. It
// dispatches three subcommands (serve, migrate, version) via a simple switch
// on os.Args so the binary's full CLI surface is readable in one place
// without requiring a cobra dependency. The serve command runs auto-migration
// on startup so freshly deployed containers never need a separate migration
// step.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/log-center/log-center/internal/api"
	"github.com/log-center/log-center/internal/config"
	"github.com/log-center/log-center/internal/db"
	"github.com/log-center/log-center/internal/db/models"
	"github.com/log-center/log-center/internal/db/repositories"
	"github.com/log-center/log-center/internal/safego"
	"github.com/log-center/log-center/internal/telemetry"
)

const (
	version = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	case "version":
		fmt.Printf("Log Center v%s\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config) error {
	// Initialise structured logger as early as possible so all subsequent log
	// output uses the configured format (json / text) and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	maskedPassword := "****"
	if cfg.Database.Password != "" {
		maskedPassword = cfg.Database.Password[:1] + "****"
	}
	log.Printf("Database config: host=%s, port=%d, user=%s, password=%s, dbname=%s, sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, maskedPassword,
		cfg.Database.Name, cfg.Database.SSLMode)

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	log.Println("Connected to database successfully")

	// Begin exporting DB pool statistics to Prometheus.
	telemetry.StartDBStatsCollector(database)

	// Run migrations automatically on startup
	log.Println("Running database migrations...")
	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("Database migrations completed successfully")

	schemaVersion, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Printf("Warning: failed to get migration version: %v", err)
	} else {
		log.Printf("Database schema version: %d (dirty: %v)", schemaVersion, dirty)
	}

	// First-run bootstrap: without at least one active admin key the admin
	// API is unreachable and no further keys can ever be issued.
	if err := bootstrapAdminKey(database, cfg); err != nil {
		log.Printf("Warning: admin bootstrap failed: %v", err)
	}

	// Start Prometheus metrics endpoint on a dedicated port so it is not
	// reachable through the public API ingress path.
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		safego.Go(func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	router, bgServices := api.NewRouter(cfg, database)

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Starting server on %s", cfg.Server.GetAddress())
		log.Printf("Base URL: %s", cfg.Server.BaseURL)
		log.Println("Server is ready to accept connections")

		var err error
		if cfg.Security.TLS.Enabled {
			log.Printf("TLS enabled: cert=%s, key=%s", cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Stop rate limiter goroutines
	bgServices.Shutdown()

	log.Println("Server stopped gracefully")
	return nil
}

// bootstrapAdminKey ensures the store holds at least one active admin key.
// The configured bootstrap holder is approved (already-approved is fine) and,
// if no active admin key exists, a fresh one is issued and its token printed
// exactly once. The token is never stored in retrievable form elsewhere, so
// losing it means re-running bootstrap against an empty admin key table.
func bootstrapAdminKey(database *sql.DB, cfg *config.Config) error {
	ctx := context.Background()

	adminHolderRepo := repositories.NewAdminKeyHolderRepository(database)
	if _, err := adminHolderRepo.Approve(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminName); err != nil {
		if !errors.Is(err, repositories.ErrDuplicateHolder) {
			return fmt.Errorf("failed to approve bootstrap admin: %w", err)
		}
		// Holder already registered from a previous run.
	}

	keyRepo := repositories.NewAPIKeyRepository(database)
	active, err := keyRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active keys: %w", err)
	}
	for _, key := range active {
		if key.Kind == models.KeyKindAdmin {
			return nil // Admin access already provisioned, nothing to do
		}
	}

	key, err := keyRepo.Issue(ctx, cfg.Bootstrap.AdminEmail, models.KeyKindAdmin, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to issue bootstrap admin key: %w", err)
	}

	separator := strings.Repeat("═", 66)
	log.Println("")
	log.Println(separator)
	log.Println("  BOOTSTRAP ADMIN KEY ISSUED")
	log.Println("")
	log.Printf("  Owner: %s", key.OwnerEmail)
	log.Printf("  Token: %s", key.Token)
	log.Println("")
	log.Println("  Send this token in the X-Admin-API-Key header to manage")
	log.Println("  holders and issue further keys. It is printed only once")
	log.Println("  and cannot be recovered later.")
	log.Println(separator)
	log.Println("")

	if !cfg.Security.TLS.Enabled {
		log.Println("Warning: TLS is not enabled. API key headers will be transmitted in plaintext.")
	}

	return nil
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	log.Printf("Running migrations: %s", direction)

	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	schemaVersion, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", schemaVersion, dirty)
	return nil
}
