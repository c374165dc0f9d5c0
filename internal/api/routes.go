package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/api/handlers"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/api/middleware"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/config"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/directory"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/services"
	"github.com/vincentgggg12/docufen-admin-sub001/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Router struct {
	engine         *gin.Engine
	logger         *zap.Logger
	metrics        *metrics.MetricsCollector
	db             *gorm.DB
	docHandler     *handlers.DocumentHandler
	groupHandler   *handlers.GroupHandler
	auditHandler   *handlers.AuditHandler
	authMiddleware *middleware.AuthMiddleware
	reqMiddleware  *middleware.RequestMiddleware
	rateLimiter    *middleware.RateLimiter
}

func NewRouter(
	cfg *config.Configuration,
	logger *zap.Logger,
	metrics *metrics.MetricsCollector,
	docService *services.DocumentService,
	dir directory.Directory,
	db *gorm.DB,
) *Router {
	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	reqMiddleware := middleware.NewRequestMiddleware(logger)
	logMiddleware := middleware.NewLoggingMiddleware(logger)

	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(reqMiddleware.RecoverPanic())
	engine.Use(logMiddleware.LogRequest())

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit, logger)
	}

	return &Router{
		engine:         engine,
		logger:         logger,
		metrics:        metrics,
		db:             db,
		docHandler:     handlers.NewDocumentHandler(docService, logger),
		groupHandler:   handlers.NewGroupHandler(docService, logger),
		auditHandler:   handlers.NewAuditHandler(docService, logger),
		authMiddleware: middleware.NewAuthMiddleware(cfg.Security, dir, logger),
		reqMiddleware:  reqMiddleware,
		rateLimiter:    limiter,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", r.health)

	r.engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, r.metrics.Snapshot())
	})

	v1 := r.engine.Group("/api/v1")
	v1.Use(r.authMiddleware.RequireAuth())
	if r.rateLimiter != nil {
		v1.Use(r.rateLimiter.Limit())
	}

	docs := v1.Group("/documents")
	{
		docs.POST("", r.docHandler.CreateDocument)
		docs.GET("/:id", r.docHandler.GetDocument)
		docs.DELETE("/:id", r.docHandler.DeleteDocument)
		docs.PUT("/:id/content", r.docHandler.UpdateContent)
		docs.POST("/:id/attachments", r.docHandler.AddAttachment)
		docs.GET("/:id/capabilities", r.docHandler.Capabilities)
		docs.POST("/:id/transitions", r.docHandler.RequestTransition)
		docs.POST("/:id/reopen", r.docHandler.Reopen)
		docs.POST("/:id/void", r.docHandler.VoidDocument)
		docs.POST("/:id/copies", r.docHandler.CreateControlledCopy)
		docs.GET("/:id/finalization", r.docHandler.FinalizationStatus)
		docs.DELETE("/:id/finalization", r.docHandler.CancelFinalization)

		docs.GET("/:id/audit", r.auditHandler.AuditTrail)
		docs.GET("/:id/audit/verify", r.auditHandler.VerifyLedger)
	}

	groups := docs.Group("/:id/groups/:group")
	{
		groups.POST("/participants", r.groupHandler.AddParticipant)
		groups.DELETE("/participants/:user", r.groupHandler.RemoveParticipant)
		groups.POST("/participants/:user/revoke", r.groupHandler.RevokeVerification)
		groups.POST("/participants/:user/reverify", r.groupHandler.Reverify)
		groups.PUT("/order", r.groupHandler.SetOrderEnforced)
		groups.GET("/next-signer", r.groupHandler.NextSigner)
		groups.GET("/eligible-signers", r.groupHandler.EligibleSigners)
		groups.POST("/signatures", r.groupHandler.Sign)
	}
}

// health reports "degraded" with 503 when the database does not answer.
func (r *Router) health(c *gin.Context) {
	status, code := "up", http.StatusOK
	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			r.logger.Warn("Health check failed", zap.Error(err))
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{"status": status, "name": "docufen-engine"})
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
