package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scopeboard/internal/services"
)

type StatusController struct {
	cache *services.WorkspaceCache
}

func NewStatusController(cache *services.WorkspaceCache) *StatusController {
	return &StatusController{cache: cache}
}

// GetStatus reports process resource usage and cache occupancy
func (sc *StatusController) GetStatus(c *gin.Context) {
	status, err := services.GetServiceStatus(sc.cache)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
