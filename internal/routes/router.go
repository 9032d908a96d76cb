package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scopeboard/internal/config"
	"scopeboard/internal/controllers"
	"scopeboard/internal/middleware"
	"scopeboard/internal/services"
)

// NewRouter wires middleware, controllers and routes onto a gin engine
func NewRouter(cfg *config.Config, cache *services.WorkspaceCache, hub *services.RefreshHub, auth *services.AuthService, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	security := middleware.NewSecurityLogger(logger)
	r.Use(middleware.IPWhitelistMiddleware(middleware.NewIPWhitelist(cfg.IPWhitelist), security))
	r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(), security))
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	editorAuth := middleware.AuthMiddleware(auth, security)
	tokenLimit := middleware.RateLimitMiddleware(middleware.NewTokenRateLimiter(), security)

	RegisterDashboardRoutes(r, controllers.NewDashboardController(cache, logger), editorAuth)
	RegisterSessionRoutes(r, controllers.NewSessionController(cache, logger), editorAuth)
	RegisterAuthRoutes(r, controllers.NewWebSocketController(hub, auth, cfg.Auth.BootstrapKey, cfg.AllowedOrigins, security, logger), tokenLimit)
	RegisterStatusRoutes(r, controllers.NewStatusController(cache))
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()))
	}
}
