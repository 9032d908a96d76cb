package routes

import (
	"scopeboard/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterDashboardRoutes registers the viewer-side routes. Creating and
// deleting dashboards needs an editor token.
func RegisterDashboardRoutes(r *gin.Engine, dc *controllers.DashboardController, editorAuth gin.HandlerFunc) {
	dashboards := r.Group("/dashboards")
	{
		dashboards.GET("", dc.ListDashboards)
		dashboards.POST("", editorAuth, dc.CreateDashboard)
		dashboards.GET("/:id", dc.GetDashboard)
		dashboards.DELETE("/:id", editorAuth, dc.DeleteDashboard)

		dashboards.GET("/:id/panels/:panel/resolve", dc.ResolvePanel)

		dashboards.GET("/:id/variables", dc.ListVariables)
		dashboards.POST("/:id/variables/admissible", dc.AdmissibleDependencies)
		dashboards.PUT("/:id/variables/:name/value", dc.SetVariableValue)

		dashboards.GET("/:id/time", dc.GetPicker)
		dashboards.POST("/:id/time/stage", dc.StageTime)
		dashboards.POST("/:id/time/apply", dc.ApplyTime)
		dashboards.POST("/:id/time/discard", dc.DiscardTime)

		dashboards.GET("/:id/share", dc.GetShareParams)
		dashboards.POST("/:id/share", dc.RestoreShareParams)
	}
}
