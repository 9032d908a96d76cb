package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scopeboard/internal/middleware"
	"scopeboard/internal/models"
	"scopeboard/internal/services"
)

// DashboardController serves the committed, view-side state of dashboards
type DashboardController struct {
	cache     *services.WorkspaceCache
	validator *middleware.InputValidator
	logger    *zap.Logger
}

func NewDashboardController(cache *services.WorkspaceCache, logger *zap.Logger) *DashboardController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardController{
		cache:     cache,
		validator: middleware.NewInputValidator(),
		logger:    logger,
	}
}

type createDashboardRequest struct {
	Title string `json:"title" binding:"required"`
}

type candidateRequest struct {
	Name           string       `json:"name"`
	Scope          models.Scope `json:"scope" binding:"required"`
	AssignedTabs   []string     `json:"assigned_tabs"`
	AssignedPanels []string     `json:"assigned_panels"`
}

type valueRequest struct {
	Values []string `json:"values"`
}

type timeRequest struct {
	// Panel is empty for the dashboard-wide picker
	Panel string `json:"panel"`
	Range string `json:"range"`
}

func (dc *DashboardController) workspace(c *gin.Context) (*services.Workspace, bool) {
	ws, err := dc.cache.GetWorkspace(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return ws, true
}

// CreateDashboard creates an empty dashboard with a Default tab
func (dc *DashboardController) CreateDashboard(c *gin.Context) {
	var req createDashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ws, err := dc.cache.CreateDashboard(c.Request.Context(), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ws.Snapshot())
}

func (dc *DashboardController) ListDashboards(c *gin.Context) {
	dashboards, err := dc.cache.ListDashboards(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	summaries := make([]gin.H, 0, len(dashboards))
	for _, d := range dashboards {
		summaries = append(summaries, gin.H{"id": d.ID, "title": d.Title})
	}
	c.JSON(http.StatusOK, gin.H{"dashboards": summaries})
}

func (dc *DashboardController) GetDashboard(c *gin.Context) {
	ws, ok := dc.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ws.Snapshot())
}

func (dc *DashboardController) DeleteDashboard(c *gin.Context) {
	if err := dc.cache.DeleteDashboard(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResolvePanel returns everything a panel needs to run its query
func (dc *DashboardController) ResolvePanel(c *gin.Context) {
	ws, ok := dc.workspace(c)
	if !ok {
		return
	}
	res, err := ws.Resolve(c.Param("panel"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListVariables lists the variables visible in a tab or panel context.
// Query params: tab, panel (both optional)
func (dc *DashboardController) ListVariables(c *gin.Context) {
	ws, ok := dc.workspace(c)
	if !ok {
		return
	}
	var ctx services.VariableContext
	if err := c.ShouldBindQuery(&ctx); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"variables": ws.ListVisibleTo(ctx)})
}

// AdmissibleDependencies lists the upstream variables a candidate may
// depend on in the committed state
func (dc *DashboardController) AdmissibleDependencies(c *gin.Context) {
	ws, ok := dc.workspace(c)
	if !ok {
		return
	}
	var req candidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	vars, err := ws.AdmissibleDependencies(req.candidate())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"variables": vars})
}

func (req candidateRequest) candidate() services.Candidate {
	return services.Candidate{
		Name:           req.Name,
		Scope:          req.Scope,
		AssignedTabs:   req.AssignedTabs,
		AssignedPanels: req.AssignedPanels,
	}
}

// SetVariableValue commits the current selection of a variable
func (dc *DashboardController) SetVariableValue(c *gin.Context) {
	ws, ok := dc.workspace(c)
	if !ok {
		return
	}
	name := c.Param("name")
	if !dc.validator.ValidateVariableName(name) {
		respondError(c, models.NewError(models.KindInvalidName, "invalid variable name %q", name))
		return
	}
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	refreshed, err := ws.SetValue(name, req.Values)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": refreshed})
}

// GetPicker returns the staged and committed values of a picker.
// Query params: panel (empty for the dashboard-wide picker)
func (dc *DashboardController) GetPicker(c *gin.Context) {
	ws, ok := dc.workspace(c)
	if !ok {
		return
	}
	staged, committed, err := ws.Picker(c.Query("panel"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staged": staged, "committed": committed})
}

func (dc *DashboardController) StageTime(c *gin.Context) {
	ws, ok := dc.workspace(c)
	if !ok {
		return
	}
	var req timeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := models.ParseTimeRange(req.Range)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := ws.Stage(req.Panel, r); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staged": r})
}

// ApplyTime commits the staged value of a picker
func (dc *DashboardController) ApplyTime(c *gin.Context) {
	ws, ok := dc.workspace(c)
	if !ok {
		return
	}
	var req timeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := ws.Apply(req.Panel)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (dc *DashboardController) DiscardTime(c *gin.Context) {
	ws, ok := dc.workspace(c)
	if !ok {
		return
	}
	var req timeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ws.Discard(req.Panel)
	c.Status(http.StatusNoContent)
}

// GetShareParams returns the URL query mirroring the committed ranges
func (dc *DashboardController) GetShareParams(c *gin.Context) {
	ws, ok := dc.workspace(c)
	if !ok {
		return
	}
	params := ws.ShareParams()
	c.JSON(http.StatusOK, gin.H{"query": params.Encode(), "params": params})
}

// RestoreShareParams applies the ranges of a shared link. The link's query
// string is taken from the request's own query.
func (dc *DashboardController) RestoreShareParams(c *gin.Context) {
	ws, ok := dc.workspace(c)
	if !ok {
		return
	}
	results, err := ws.RestoreParams(c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": results})
}
