package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/scryptex/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	handlers := NewAuthHandlers(authService, logger)
	sessions := authService.Sessions()
	requireAuth := AuthMiddleware(sessions, logger)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/verify", handlers.Verify)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
		auth.GET("/status", OptionalAuth(sessions, logger), handlers.Status)

		auth.GET("/me", requireAuth, handlers.Me)
		auth.PUT("/profile", requireAuth, handlers.UpdateProfile)
		auth.GET("/sessions", requireAuth, handlers.Sessions)
	}

	// Admin routes
	admin := router.Group("/admin")
	admin.Use(requireAuth, AdminMiddleware(logger))
	{
		admin.POST("/users/:id/revoke-sessions", handlers.RevokeUserSessions)
	}

	return router
}
