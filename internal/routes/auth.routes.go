package routes

import (
	"scopeboard/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes registers the refresh feed and token endpoints.
// Token issuance sits behind its own, stricter rate limit.
func RegisterAuthRoutes(r *gin.Engine, wc *controllers.WebSocketController, tokenLimit gin.HandlerFunc) {
	r.GET("/ws", wc.HandleWebSocket)

	auth := r.Group("/auth")
	{
		auth.POST("/token", tokenLimit, wc.HandleGetToken)
		auth.GET("/token", wc.HandleTokenStatus)
	}
}
