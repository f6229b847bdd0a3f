// Package main is the entry point for the metaform schema API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metaform/internal/domain/auth"
	"metaform/internal/engine"
	"metaform/internal/infrastructure/cache"
	v1 "metaform/internal/infrastructure/http/v1"
	"metaform/internal/infrastructure/httpclient"
	"metaform/internal/infrastructure/storage/kv"
	"metaform/internal/infrastructure/storage/postgres"
	"metaform/internal/infrastructure/storage/postgres/schema_repo"
	"metaform/internal/options"
	"metaform/internal/schema"
	"metaform/internal/schema/expr"
	"metaform/internal/schema/version"
	"metaform/internal/service"
	"metaform/pkg/logger"
)

const appVersion = "1.0.0"

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting metaform server")

	// --- Database ---
	dsn := mustEnv("DATABASE_URL")
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	store, err := schema_repo.NewStore(pool.Unwrap())
	if err != nil {
		log.Fatalw("failed to create schema store", "error", err)
	}

	audit, err := postgres.NewSchemaAudit(pool.Unwrap())
	if err != nil {
		log.Fatalw("failed to create schema audit log", "error", err)
	}

	// --- Validator ---
	validator := schema.NewValidator()
	if rules, err := expr.NewRuleEvaluator(); err != nil {
		log.Warnw("rule evaluator unavailable, expression rules unchecked", "error", err)
	} else {
		validator = schema.NewValidatorWithRules(rules)
	}

	// --- Options loader ---
	loader := options.NewLoader(
		httpclient.New(getEnvDuration("OPTIONS_HTTP_TIMEOUT", 10*time.Second)),
		options.NewResolverRegistry(),
	)

	// --- Schema service ---
	schemaService := service.NewSchemaService(store, validator, version.DefaultRegistry(), engine.DefaultRegistry(), loader)

	// --- Cache invalidation over LISTEN/NOTIFY ---
	invalidator := cache.NewInvalidator(pool.Unwrap(), schemaService.Invalidate)
	invalidator.Start(ctx)
	defer invalidator.Stop()

	// --- MRU tracker ---
	mru := service.NewMRUTracker(kv.NewFile(getEnv("STATE_FILE", "data/state.json")))

	// --- Auth ---
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(getEnv("JWT_SECRET", "change-me-in-production")))

	backend := auth.NewLocalBackend()
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		admin, err := auth.NewUser(email, mustEnv("ADMIN_PASSWORD"))
		if err != nil {
			log.Fatalw("failed to create admin user", "error", err)
		}
		admin.Name = "Administrator"
		admin.IsAdmin = true
		admin.Roles = []string{"admin"}
		backend.AddUser(admin)
	}

	static := auth.NewStaticTokenBackend()
	if token := os.Getenv("API_TOKEN"); token != "" {
		svcUser, err := auth.NewUser("service@metaform.local", token)
		if err != nil {
			log.Fatalw("failed to create service user", "error", err)
		}
		svcUser.IsAdmin = true
		static.AddToken(token, svcUser)
	}

	authService := auth.NewService(backend, static, jwtService)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:          pool,
		Logger:        log,
		AuthService:   authService,
		SchemaService: schemaService,
		SchemaCatalog: store,
		SchemaAudit:   audit,
		OptionsLoader: loader,
		MRU:           mru,
		AdminRole:     getEnv("SCHEMA_ADMIN_ROLE", "admin"),
		Version:       appVersion,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
