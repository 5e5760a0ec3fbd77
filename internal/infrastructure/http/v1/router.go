package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docnum/internal/domain/numbering"
	"docnum/internal/infrastructure/http/v1/handlers"
	"docnum/internal/infrastructure/http/v1/middleware"
	"docnum/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Numbering generates numbers and administers rules
	Numbering *numbering.Service

	// Audit serves rule history; nil when the store keeps no audit trail
	Audit handlers.AuditHistory

	// HealthChecks are run by /health/ready, keyed by dependency name
	HealthChecks map[string]handlers.Checker

	// Metrics is mounted at /metrics when set
	Metrics http.Handler

	// GenerateTimeout bounds a single generation request
	GenerateTimeout time.Duration
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.UserContext())
	{
		baseHandler := handlers.NewBaseHandler()
		numberingHandler := handlers.NewNumberingHandler(baseHandler, cfg.Numbering, cfg.Audit, cfg.GenerateTimeout)
		RegisterNumberingRoutes(v1, numberingHandler)
	}

	return router
}
