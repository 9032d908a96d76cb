package routes

import (
	"scopeboard/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterStatusRoutes(r *gin.Engine, sc *controllers.StatusController) {
	r.GET("/healthz", controllers.Healthz)
	r.GET("/status", sc.GetStatus)
}
