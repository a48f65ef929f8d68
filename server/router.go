// router.go - Route table for the dashboard API

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"

	"go-home-dashboard/handlers"
	"go-home-dashboard/metrics"
	"go-home-dashboard/middleware"
)

// NewRouter builds the gin engine with every route.
func NewRouter(h *handlers.Handler) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}
	cfg := h.Config

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(), metrics.Middleware())

	// Public routes (no authentication required)
	r.GET("/health", h.Health)
	r.GET("/metrics", metrics.Handler())
	r.POST("/register", h.Register)
	login := middleware.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst)
	r.POST("/login", login.Middleware(), h.Login)

	// Protected routes (require JWT authentication)
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret, h.Denylist, h.DB))
	admin := middleware.AdminMiddleware()
	{
		api.GET("/me", h.Me)
		api.POST("/logout", h.Logout)

		api.GET("/users", admin, h.ListUsers)
		api.POST("/users", admin, h.CreateUser)
		api.GET("/users/:id", h.GetUser)    // Admin or self
		api.PUT("/users/:id", h.UpdateUser) // Admin or self
		api.DELETE("/users/:id", admin, h.DeleteUser)

		api.GET("/roles", h.ListRoles)
		api.GET("/roles/:id", h.GetRole)
		api.PUT("/roles/:id/users", admin, h.AssignRole) // :id is the role name

		api.GET("/devices", h.ListDevices)
		api.POST("/devices", admin, h.CreateDevice)
		api.GET("/devices/:id", h.GetDevice)
		api.PUT("/devices/:id", admin, h.UpdateDevice)
		api.DELETE("/devices/:id", admin, h.DeleteDevice)
		api.POST("/devices/:id/state", h.SetState)
		api.PUT("/devices/:id/level", h.SetLevel)
		api.POST("/devices/:id/activate", h.Activate)
		api.GET("/devices/:id/activations", h.ListActivations)

		api.GET("/system/status", h.Status)
		api.POST("/admin/shutdown", admin, h.Shutdown)
		api.POST("/admin/restart", admin, h.Restart)
		api.POST("/admin/send", admin, h.SendCommand)

		api.GET("/logs", admin, h.ListLogs)
		api.DELETE("/logs", admin, h.ClearLogs)
		api.GET("/logs/stream", admin, h.StreamLogs)
	}
	return r, nil
}

// WithCORS lets the dashboard SPA call the API from its own origin.
func WithCORS(next http.Handler, origins []string) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposedHeaders:   []string{middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	})(next)
}
