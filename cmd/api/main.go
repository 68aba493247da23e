package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jacobwhite/taskdeck/internal/async"
	"github.com/jacobwhite/taskdeck/internal/auth"
	"github.com/jacobwhite/taskdeck/internal/background"
	"github.com/jacobwhite/taskdeck/internal/cache"
	"github.com/jacobwhite/taskdeck/internal/config"
	"github.com/jacobwhite/taskdeck/internal/database"
	"github.com/jacobwhite/taskdeck/internal/handlers"
	middlewareCustom "github.com/jacobwhite/taskdeck/internal/middleware"
	"github.com/jacobwhite/taskdeck/internal/queue"
	"github.com/jacobwhite/taskdeck/internal/repositories"
	"github.com/jacobwhite/taskdeck/internal/routes"
	"github.com/jacobwhite/taskdeck/internal/services"
	pkghttp "github.com/jacobwhite/taskdeck/pkg/http"
	pkglogger "github.com/jacobwhite/taskdeck/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Run migrations before serving traffic
	if err := database.Migrate(cfg.Database.DSN(), logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize cache
	redisClient, err := cache.NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()

	appCache := cache.New(redisClient, cache.Config{DefaultTTL: cfg.Cache.DefaultTTL}, logger)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	taskRepo := repositories.NewTaskRepository(db)

	// Event queue client
	events := queue.NewClient(&cfg.Redis, cfg.Queue, logger)
	defer events.Close()

	// Detached executor for post-commit side effects
	executor := async.NewExecutor(4, 256, logger)

	// Auth infrastructure
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	blacklist := auth.NewBlacklist(appCache)
	lockoutGuard := auth.NewLockoutGuard(appCache, logger)
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Initialize services
	taskService := services.NewTaskService(taskRepo, appCache, events, executor, cfg.Cache, logger)
	authService := services.NewAuthService(userRepo, lockoutGuard, blacklist, tokenManager, logger, auditLogger)
	userService := services.NewUserService(userRepo, logger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{
		TrustedProxies: cfg.Server.TrustedProxies,
	}
	taskHandler := handlers.NewTaskHandler(taskService)
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	userHandler := handlers.NewUserHandler(userService)
	systemHandler := handlers.NewSystemHandler(db, appCache)

	// Shared rate limiter
	rateLimiter := middlewareCustom.NewRateLimiter(appCache, logger)

	// Scheduled sweeps run inside the API process
	sweeper := background.NewSweeper(taskRepo, appCache, events, taskService, logger)
	if err := sweeper.Start(); err != nil {
		logger.Error("failed to start background sweeps", slog.Any("error", err))
		os.Exit(1)
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, taskHandler, authHandler, userHandler, systemHandler, tokenManager, blacklist, rateLimiter, cfg.RateLimit)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Drain detached side effects after the listener stops accepting work
	executor.Shutdown()

	logger.Info("server stopped gracefully")
}
