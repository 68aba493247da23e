package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jacobwhite/taskdeck/internal/auth"
	"github.com/jacobwhite/taskdeck/internal/config"
	"github.com/jacobwhite/taskdeck/internal/handlers"
	"github.com/jacobwhite/taskdeck/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	taskHandler *handlers.TaskHandler,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	systemHandler *handlers.SystemHandler,
	tokenManager *auth.TokenManager,
	blacklist *auth.Blacklist,
	rateLimiter *middleware.RateLimiter,
	rlCfg config.RateLimitConfig,
) {
	// In-process throttle for credential endpoints, ahead of everything else
	authThrottle := middleware.ThrottleByIP(middleware.DefaultAuthThrottle())

	router.Get("/health", systemHandler.Health)

	// Public routes - no authentication required
	router.With(authThrottle).Post("/auth/login", authHandler.Login)
	router.With(authThrottle).Post("/auth/register", authHandler.Register)
	router.With(authThrottle).Post("/auth/refresh", authHandler.RefreshToken)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager, blacklist))
		r.Use(rateLimiter.Limit(middleware.RateLimitPolicy{
			Limit:  rlCfg.Requests,
			Window: rlCfg.Window,
		}))

		r.Post("/auth/logout", authHandler.Logout)

		r.Get("/users/me", userHandler.GetCurrentUser)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", taskHandler.CreateTask)
			r.Get("/", taskHandler.ListTasks)
			r.Get("/statistics", taskHandler.GetStatistics)

			// Batch mutations get a tighter quota than single writes
			r.With(rateLimiter.Limit(middleware.RateLimitPolicy{
				Limit:  10,
				Window: time.Minute,
			})).Post("/batch", taskHandler.BatchUpdateTasks)

			r.Get("/{id}", taskHandler.GetTask)
			r.Patch("/{id}", taskHandler.UpdateTask)
			r.Delete("/{id}", taskHandler.DeleteTask)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))
			r.Get("/admin/statistics", taskHandler.GetGlobalStatistics)
			r.Get("/admin/users", userHandler.ListUsers)
			r.Delete("/admin/users/{id}", userHandler.DeleteUser)
			r.Get("/admin/cache/stats", systemHandler.CacheStats)
			r.Post("/admin/cache/stats/reset", systemHandler.ResetCacheStats)
		})
	})
}
