package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/auth-gate/internal/api/http/handlers"
	"github.com/spec-kit/auth-gate/internal/auth"
	"github.com/spec-kit/auth-gate/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Users        *handlers.UsersHandler
	Gate         *auth.Gate
	LoginLimiter *RateLimiter
	Metrics      *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	limited := func(c *fiber.Ctx) error { return c.Next() }
	if cfg.LoginLimiter != nil {
		limited = cfg.LoginLimiter.Handler()
	}

	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/signup", limited, cfg.Auth.Signup)
	authGroup.Post("/login", limited, cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Get("/refresh-token", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/logout", cfg.Auth.Logout)

	authGroup.Get("/me", cfg.Gate.Require(auth.OpUsersMe), cfg.Users.Me)
	authGroup.Get("/users", cfg.Gate.Require(auth.OpUsersList), cfg.Users.List)
	authGroup.Get("/users/:id", cfg.Gate.Require(auth.OpUsersGet), cfg.Users.Get)
	authGroup.Put("/users/:id", cfg.Gate.Require(auth.OpUsersUpdate), cfg.Users.Update)
	authGroup.Delete("/users/:id", cfg.Gate.Require(auth.OpUsersDelete), cfg.Users.Delete)
}
