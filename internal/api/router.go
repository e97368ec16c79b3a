// Package api wires together all HTTP routes for the Medcore access-control
// and audit service.
//
// Route grouping philosophy:
//   - /health, /ready, and /version are unauthenticated so load balancers and
//     orchestration probes work without credentials.
//   - Everything under /api/v1 requires a bearer token. Access-check endpoints
//     need only authentication; admin endpoints additionally sit behind the
//     RBAC guard, and mutating requests are recorded in the audit trail.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/medcore-hms/medcore/internal/api/access"
	"github.com/medcore-hms/medcore/internal/api/admin"
	"github.com/medcore-hms/medcore/internal/archive"
	"github.com/medcore-hms/medcore/internal/audit"
	"github.com/medcore-hms/medcore/internal/auth"
	"github.com/medcore-hms/medcore/internal/authz"
	"github.com/medcore-hms/medcore/internal/config"
	"github.com/medcore-hms/medcore/internal/db/repositories"
	"github.com/medcore-hms/medcore/internal/jobs"
	"github.com/medcore-hms/medcore/internal/middleware"

	// Import archive backends to register them
	_ "github.com/medcore-hms/medcore/internal/archive/azure"
	_ "github.com/medcore-hms/medcore/internal/archive/gcs"
	_ "github.com/medcore-hms/medcore/internal/archive/local"
	_ "github.com/medcore-hms/medcore/internal/archive/s3"
)

// Version is the service version reported by /version. Overridden at build
// time via -ldflags.
var Version = "0.1.0"

// BackgroundServices holds background jobs and resources that must be stopped
// during graceful shutdown. The caller (cmd/server) invokes Shutdown after
// the HTTP server has drained in-flight requests.
type BackgroundServices struct {
	archiver  *jobs.AuditArchiver
	retention *jobs.AuditRetention
	limiter   middleware.Limiter
	shipper   *audit.MultiShipper
	redis     *redis.Client
}

// Shutdown stops all background goroutines and flushes the audit shipper.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.archiver != nil {
		bg.archiver.Stop()
	}
	if bg.retention != nil {
		bg.retention.Stop()
	}
	if bg.limiter != nil {
		bg.limiter.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Warn("audit shipper close failed", "error", err)
		}
	}
	if bg.redis != nil {
		if err := bg.redis.Close(); err != nil {
			slog.Warn("redis close failed", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router and starts the background
// jobs.
func NewRouter(cfg *config.Config, db *sqlx.DB) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Audit trail: in-memory ledger + durable store + configured shippers.
	ledger := audit.NewLedger(cfg.Audit.LedgerCapacity)
	shipper, err := audit.NewMultiShipper(cfg.Audit.Shippers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit shippers: %w", err)
	}
	recorder := audit.NewRecorder(ledger,
		audit.WithStore(auditRepo),
		audit.WithShipper(shipper),
		audit.WithPersistTimeout(cfg.Audit.PersistTimeout),
	)

	// Compliance archive backend and exporter.
	archiveBackend, err := archive.NewBackend(&cfg.Archive)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize archive backend: %w", err)
	}
	slog.Info("archive backend initialized", "backend", cfg.Archive.DefaultBackend)
	exporter := archive.NewExporter(ledger, archiveBackend, cfg.Archive.DefaultBackend)

	// Token verification
	verifier, err := auth.NewVerifier(cfg.Security.JWTSecret)
	if err != nil {
		return nil, nil, err
	}

	// Background jobs run under the process-lifetime context; they are
	// stopped explicitly via BackgroundServices.Shutdown.
	bg := &BackgroundServices{shipper: shipper}
	bg.archiver = jobs.NewAuditArchiver(exporter, cfg.Audit.ArchiveInterval)
	bg.archiver.Start(context.Background())
	bg.retention = jobs.NewAuditRetention(auditRepo, cfg.Audit.RetentionDays)
	bg.retention.Start(context.Background())

	// Rate limiting: Redis-backed when configured, in-process otherwise.
	var limiter middleware.Limiter
	if cfg.Security.RateLimiting.Enabled {
		rl := cfg.Security.RateLimiting
		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			bg.redis = rdb
			limiter = middleware.NewRedisLimiter(rdb, rl.RequestsPerMinute, rl.Burst)
			slog.Info("rate limiting via redis", "addr", cfg.Redis.Addr)
		} else {
			limiter = middleware.NewMemoryLimiter(rl.RequestsPerMinute, rl.Burst)
			slog.Info("rate limiting via in-process token bucket")
		}
		bg.limiter = limiter
	}

	// Middleware chain. Order matters: security headers and rate limiting run
	// before authentication; the RBAC guard and the request audit middleware
	// run after it (see the package doc in internal/middleware).
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, archiveBackend))
	router.GET("/version", versionHandler())

	guard := middleware.NewGuard(recorder, orgRepo)
	accessHandlers := access.NewHandlers(orgRepo)
	userHandlers := admin.NewUserHandlers(userRepo, recorder)
	orgHandlers := admin.NewOrganizationHandlers(orgRepo, recorder)
	auditHandlers := admin.NewAuditHandlers(recorder, auditRepo, exporter)

	apiV1 := router.Group("/api/v1")
	if limiter != nil {
		apiV1.Use(middleware.RateLimitMiddleware(limiter))
	}
	apiV1.Use(middleware.AuthMiddleware(verifier, userRepo))
	apiV1.Use(middleware.AuditMiddleware(recorder, middleware.AuditOptions{
		LogReadOperations: cfg.Audit.LogReadOperations,
		LogFailedRequests: cfg.Audit.LogFailedRequests,
	}))
	{
		// Access checks: any authenticated user may ask about themselves.
		apiV1.GET("/me/permissions", accessHandlers.MePermissions)
		apiV1.GET("/access/feature/:tag", accessHandlers.CheckFeature)
		apiV1.GET("/access/quota/:kind", accessHandlers.CheckQuota)

		// User management. Creation is additionally gated on the staff quota:
		// accounts and inventoried staff positions draw on the same plan limit.
		usersGroup := apiV1.Group("/admin/users")
		usersGroup.Use(guard.RequirePermission(authz.PermManageUsers))
		{
			usersGroup.POST("", guard.RequireQuota(authz.ResourceStaff), userHandlers.CreateUser)
			usersGroup.GET("/:id", userHandlers.GetUser)
			usersGroup.POST("/:id/suspend", userHandlers.SuspendUser)
			usersGroup.POST("/:id/activate", userHandlers.ActivateUser)
		}

		// Organization management.
		orgsGroup := apiV1.Group("/admin/organizations")
		orgsGroup.Use(guard.RequirePermission(authz.PermManageOrganizations))
		{
			orgsGroup.POST("", orgHandlers.CreateOrganization)
			orgsGroup.GET("/:id", orgHandlers.GetOrganization)
			orgsGroup.POST("/:id/members", orgHandlers.AddMember)
			orgsGroup.POST("/:id/resources", orgHandlers.AddResource)
			orgsGroup.DELETE("/:id/resources/:resource_id", orgHandlers.RemoveResource)
		}

		// Audit trail.
		auditGroup := apiV1.Group("/admin/audit")
		auditGroup.Use(guard.RequirePermission(authz.PermViewAuditLogs))
		{
			auditGroup.GET("/logs", auditHandlers.ListLogs)
			auditGroup.GET("/stats", auditHandlers.GetStats)
			auditGroup.GET("/history", auditHandlers.History)
			auditGroup.GET("/export.csv",
				guard.RequirePermission(authz.PermExportData),
				guard.RequireFeature(authz.FeatureAuditExport),
				auditHandlers.ExportCSV)
			auditGroup.POST("/archive",
				guard.RequireRole(authz.RoleAdmin, authz.RoleCommandCenter),
				auditHandlers.Archive)
		}
	}

	return router, bg, nil
}

// healthCheckHandler reports liveness: the process is up and the database
// answers a ping.
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
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

// readinessHandler reports readiness. Unlike the liveness probe it also
// checks the archive backend, probing with a known-absent sentinel key so the
// check exercises authentication and connectivity without creating state.
func readinessHandler(db *sqlx.DB, backend archive.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if _, err := backend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["archive"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "archive backend not ready",
			})
			return
		}
		checks["archive"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler reports the service and API version.
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware logs each request through the process-wide slog handler,
// so the output format follows logging.format from the configuration.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

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
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS against the configured origin allow-list.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := "GET, POST, PUT, DELETE, OPTIONS"
	if len(cfg.Security.CORS.AllowedMethods) > 0 {
		methods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

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
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
