package routes

import (
	"scopeboard/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes registers the settings-surface routes, all behind
// editor authentication
func RegisterSessionRoutes(r *gin.Engine, sc *controllers.SessionController, editorAuth gin.HandlerFunc) {
	r.POST("/dashboards/:id/sessions", editorAuth, sc.BeginSession)

	sessions := r.Group("/dashboards/:id/sessions/:sid", editorAuth)
	{
		sessions.GET("", sc.GetDraft)
		sessions.DELETE("", sc.Cancel)
		sessions.POST("/save", sc.Save)
		sessions.GET("/validate", sc.Validate)
		sessions.GET("/changes", sc.Changes)

		sessions.POST("/variables", sc.DeclareVariable)
		sessions.PUT("/variables/:name", sc.UpdateVariable)
		sessions.DELETE("/variables/:name", sc.RemoveVariable)
		sessions.POST("/variables/admissible", sc.AdmissibleDependencies)

		sessions.POST("/tabs", sc.AddTab)
		sessions.PUT("/tabs/:tab", sc.RenameTab)
		sessions.DELETE("/tabs/:tab", sc.RemoveTab)

		sessions.POST("/panels", sc.AddPanel)
		sessions.DELETE("/panels/:panel", sc.RemovePanel)
		sessions.PUT("/panels/:panel/tab", sc.MovePanel)
		sessions.GET("/panels/:panel/time", sc.GetPanelTime)
		sessions.PUT("/panels/:panel/time", sc.SetPanelTime)
	}
}
