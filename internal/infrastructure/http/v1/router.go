// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"metaform/internal/domain/auth"
	"metaform/internal/infrastructure/http/v1/handlers"
	"metaform/internal/infrastructure/http/v1/middleware"
	"metaform/internal/infrastructure/storage/postgres"
	"metaform/internal/options"
	"metaform/internal/service"
	"metaform/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the connection to the schema database (health checks).
	Pool *postgres.Pool

	// Logger for request logging.
	Logger *logger.Logger

	// AuthService authenticates logins and validates bearer tokens.
	AuthService *auth.Service

	// SchemaService serves and registers entity schemas.
	SchemaService *service.SchemaService

	// SchemaCatalog lists and deletes stored schemas.
	SchemaCatalog handlers.SchemaCatalog

	// SchemaAudit records schema catalog changes. Optional.
	SchemaAudit handlers.SchemaAuditLog

	// OptionsLoader resolves field option sources.
	OptionsLoader *options.Loader

	// MRU tracks recently used records per user.
	MRU *service.MRUTracker

	// AdminRole guards schema registration and deletion.
	AdminRole string

	// Version reported by the info endpoint.
	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	v1 := router.Group("/api/v1")
	{
		if cfg.AuthService != nil {
			authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)
			v1.POST("/auth/login", authHandler.Login)

			me := v1.Group("/auth")
			me.Use(middleware.Auth(cfg.AuthService))
			me.GET("/me", authHandler.Me)
		}

		schemaHandler := handlers.NewSchemaHandler(baseHandler, cfg.SchemaService, cfg.SchemaCatalog, cfg.OptionsLoader, cfg.MRU, cfg.SchemaAudit)

		protected := v1.Group("/schema")
		if cfg.AuthService != nil {
			protected.Use(middleware.Auth(cfg.AuthService))
		}
		{
			protected.GET("/entities", schemaHandler.List)
			protected.GET("/entities/:entityType", schemaHandler.Get)
			protected.GET("/entities/:entityType/views/:mode", schemaHandler.View)
			protected.GET("/entities/:entityType/engine-config/:mode", schemaHandler.EngineConfig)
			protected.POST("/entities/:entityType/fields/:field/options", schemaHandler.FieldOptions)
			protected.POST("/entities/:entityType/viewstate/reconcile", schemaHandler.ReconcileViewState)
			protected.GET("/entities/:entityType/mru", schemaHandler.ListMRU)
			protected.POST("/entities/:entityType/mru", schemaHandler.TouchMRU)
			protected.POST("/validate", schemaHandler.Validate)

			admin := protected.Group("")
			if cfg.AdminRole != "" {
				admin.Use(middleware.RequireRole(cfg.AdminRole))
			}
			admin.PUT("/entities", schemaHandler.Register)
			admin.DELETE("/entities/:entityType", schemaHandler.Delete)
			admin.GET("/entities/:entityType/audit", schemaHandler.History)
		}
	}

	return router
}
