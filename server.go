package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/middlewares"
	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/queue"
	"github.com/contractflow/proposals_backend/utils"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return utils.UniqueSlice(out)
}

func int64FromEnv(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// lazyRateLimiter defers limiter construction until Redis is connected.
// The server starts listening before dependencies are up, so a limiter
// built at route registration time would stay nil forever.
func lazyRateLimiter(limit int64, window time.Duration) func() *utils.RateLimiter {
	var mu sync.Mutex
	var limiter *utils.RateLimiter
	return func() *utils.RateLimiter {
		mu.Lock()
		defer mu.Unlock()
		if limiter == nil {
			limiter = utils.NewRedisRateLimiter(limit, window)
		}
		return limiter
	}
}

func noRateLimiter() *utils.RateLimiter { return nil }

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for a
	// graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the startup probe passes. Until
	// DB/Redis are ready we return 503 for app endpoints.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist via CORS_ALLOWED_ORIGINS
	// (comma-separated); anything else allows all for developer convenience.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "X-Correlation-Id", "Retry-After")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional global limit, recommended for production.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limit := int64FromEnv("RATE_LIMIT_MAX_REQUESTS", 600)
		windowSec := int64FromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)
		r.Use(middlewares.RateLimitMiddleware(
			lazyRateLimiter(limit, time.Duration(windowSec)*time.Second), "global"))
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	// Draft generation gets its own tighter window on top of any global
	// limit; the worker behind it is the expensive part.
	draftLimiter := noRateLimiter
	if strings.EqualFold(strings.TrimSpace(os.Getenv("DRAFT_RATE_LIMIT_ENABLED")), "true") {
		limit := int64FromEnv("DRAFT_RATE_LIMIT_MAX_REQUESTS", 10)
		windowSec := int64FromEnv("DRAFT_RATE_LIMIT_WINDOW_SECONDS", 60)
		draftLimiter = lazyRateLimiter(limit, time.Duration(windowSec)*time.Second)
	}

	var broker queue.Queue
	var worker queue.Worker
	if config.PubSubConfigured() {
		b := queue.NewPubSubBroker()
		broker, worker = b, b
	} else {
		logger.WithFields(logrus.Fields{"field": "queue"}).
			Warn("pubsub not configured; using in-process queue")
		b := queue.NewMemoryBroker()
		broker, worker = b, b
	}

	// Shared document routes need no session; the token is the capability.
	r.GET("/public/documents/:token", publicDocumentHandler())

	api := r.Group("/", middlewares.RequireSession())
	{
		api.POST("/documents", createDocumentHandler())
		api.GET("/documents", listDocumentsHandler())
		api.GET("/documents/:id", getDocumentHandler())
		api.PATCH("/documents/:id", updateDocumentHandler())
		api.DELETE("/documents/:id", deleteDocumentHandler())
		api.PUT("/documents/:id/sections", replaceSectionsHandler())
		api.POST("/documents/:id/sharing", setSharingHandler())
		api.PATCH("/documents/:id/approval", changeApprovalHandler())
		api.GET("/documents/:id/comments", listApprovalCommentsHandler())
		api.POST("/documents/:id/generate-draft", generateDraftHandler(broker, draftLimiter))

		api.GET("/draft-jobs", listDraftJobsHandler())
		api.GET("/draft-jobs/:id", getDraftJobHandler())
		api.POST("/draft-jobs/:id/retry", retryDraftJobHandler(broker))

		api.GET("/audit-events", listAuditEventsHandler())

		api.GET("/notifications", listNotificationsHandler())
		api.POST("/notifications/:id/read", markNotificationReadHandler())

		api.GET("/members", listMembersHandler())
		api.PATCH("/members/:id/role", updateMemberRoleHandler())
		api.DELETE("/members/:id", removeMemberHandler())
		api.POST("/invites", createInviteHandler())
		api.POST("/invites/:id/accept", acceptInviteHandler())
	}

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running it as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).
			Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start the draft worker once the DB is up.
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	go runDraftWorker(workerCtx, worker)

	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).
				Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the worker first so it doesn't pick up new messages mid-drain.
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).
			Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that collected errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}
