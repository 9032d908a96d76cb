package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"scopeboard/internal/middleware"
	"scopeboard/internal/models"
	"scopeboard/internal/services"
)

// SessionController drives edit sessions of the settings surface
type SessionController struct {
	cache     *services.WorkspaceCache
	validator *middleware.InputValidator
	logger    *zap.Logger
}

func NewSessionController(cache *services.WorkspaceCache, logger *zap.Logger) *SessionController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionController{
		cache:     cache,
		validator: middleware.NewInputValidator(),
		logger:    logger,
	}
}

type titleRequest struct {
	Title string `json:"title" binding:"required"`
}

type panelRequest struct {
	Title string `json:"title" binding:"required"`
	TabID string `json:"tab_id" binding:"required"`
}

type moveRequest struct {
	TabID string `json:"tab_id" binding:"required"`
}

// panelTimeRequest applies enabled, then mode, then range
type panelTimeRequest struct {
	Enabled *bool            `json:"panel_time_enabled"`
	Mode    *models.TimeMode `json:"panel_time_mode"`
	Range   *string          `json:"panel_time_range"`
}

func (sc *SessionController) session(c *gin.Context) (*services.Session, bool) {
	s, err := sc.cache.GetSession(c.Param("sid"))
	if err == nil && s.DashboardID() != c.Param("id") {
		err = models.NewError(models.KindNotFound, "session %q not found on dashboard %q", c.Param("sid"), c.Param("id"))
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return s, true
}

// BeginSession opens an edit session on a dashboard
func (sc *SessionController) BeginSession(c *gin.Context) {
	s, err := sc.cache.BeginSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	editor, _ := c.Get(middleware.EditorKey)
	sc.logger.Info("edit session opened",
		zap.String("session", s.ID),
		zap.String("dashboard", c.Param("id")),
		zap.Any("editor", editor))
	c.JSON(http.StatusCreated, gin.H{"session": s.ID, "draft": s.Draft()})
}

func (sc *SessionController) GetDraft(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Draft())
}

func (sc *SessionController) DeclareVariable(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	var v models.Variable
	if err := c.ShouldBindJSON(&v); err != nil {
		badRequest(c, err)
		return
	}
	if !sc.validator.ValidateVariableName(v.Name) {
		respondError(c, models.NewError(models.KindInvalidName, "invalid variable name %q", v.Name))
		return
	}
	id, err := s.DeclareVariable(v)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "variable": v})
}

func (sc *SessionController) UpdateVariable(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	var v models.Variable
	if err := c.ShouldBindJSON(&v); err != nil {
		badRequest(c, err)
		return
	}
	if !sc.validator.ValidateVariableName(v.Name) {
		respondError(c, models.NewError(models.KindInvalidName, "invalid variable name %q", v.Name))
		return
	}
	if err := s.UpdateVariable(c.Param("name"), v); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"variable": v})
}

func (sc *SessionController) RemoveVariable(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	if err := s.RemoveVariable(c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AdmissibleDependencies answers against the session's draft
func (sc *SessionController) AdmissibleDependencies(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	var req candidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	vars, err := s.AdmissibleDependencies(req.candidate())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"variables": vars})
}

func (sc *SessionController) AddTab(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := s.AddTab(req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (sc *SessionController) RenameTab(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.RenameTab(c.Param("tab"), req.Title); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveTab reports the variables removed with the tab
func (sc *SessionController) RemoveTab(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	removed, err := s.RemoveTab(c.Param("tab"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed_variables": removed})
}

func (sc *SessionController) AddPanel(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	var req panelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := s.AddPanel(req.TabID, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (sc *SessionController) RemovePanel(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	removed, err := s.RemovePanel(c.Param("panel"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed_variables": removed})
}

func (sc *SessionController) MovePanel(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.MovePanel(c.Param("panel"), req.TabID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (sc *SessionController) GetPanelTime(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	cfg, state, err := s.PanelTime(c.Param("panel"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg, "state": state})
}

// SetPanelTime edits the enabled/mode/range triple of a panel. The fields
// present in the body are applied together or not at all.
func (sc *SessionController) SetPanelTime(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	var req panelTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	panelID := c.Param("panel")

	var r *models.TimeRange
	if req.Range != nil {
		parsed, err := models.ParseTimeRange(*req.Range)
		if err != nil {
			respondError(c, err)
			return
		}
		r = &parsed
	}
	if _, err := s.SetPanelTime(panelID, req.Enabled, req.Mode, r); err != nil {
		respondError(c, err)
		return
	}

	cfg, state, err := s.PanelTime(panelID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg, "state": state})
}

// Validate lists every problem that would block Save
func (sc *SessionController) Validate(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	errs := multierr.Errors(s.Validate())
	problems := make([]interface{}, 0, len(errs))
	for _, err := range errs {
		problems = append(problems, errorBody(err))
	}
	c.JSON(http.StatusOK, gin.H{"valid": len(errs) == 0, "errors": problems})
}

// Changes describes the pending edits against the committed dashboard
func (sc *SessionController) Changes(c *gin.Context) {
	s, ok := sc.session(c)
	if !ok {
		return
	}
	changes, err := s.Changes()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes})
}

func (sc *SessionController) Save(c *gin.Context) {
	if _, ok := sc.session(c); !ok {
		return
	}
	refreshed, err := sc.cache.SaveSession(c.Request.Context(), c.Param("sid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": refreshed})
}

func (sc *SessionController) Cancel(c *gin.Context) {
	if _, ok := sc.session(c); !ok {
		return
	}
	if err := sc.cache.CancelSession(c.Param("sid")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
