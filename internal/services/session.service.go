package services

import (
	"sync"

	"github.com/r3labs/diff/v2"
	"github.com/rs/xid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"scopeboard/internal/models"
)

// Session is one settings-surface edit of a dashboard. It works on private
// copies; nothing is visible to the resolution facade until Save.
type Session struct {
	mu        sync.Mutex
	ID        string
	ws        *Workspace
	draft     *models.Dashboard
	hierarchy *Hierarchy
	registry  *Registry
	baseline  map[string]models.PanelTimeConfig
	closed    bool
	logger    *zap.Logger
}

// BeginSession opens an edit session on the committed state
func (ws *Workspace) BeginSession() *Session {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	draft := ws.state.dashboard.Clone()
	h := NewHierarchy(draft)
	baseline := make(map[string]models.PanelTimeConfig)
	for _, tab := range draft.Tabs {
		for i := range tab.Panels {
			baseline[tab.Panels[i].ID] = panelTime(&tab.Panels[i])
		}
	}
	s := &Session{
		ID:        xid.New().String(),
		ws:        ws,
		draft:     draft,
		hierarchy: h,
		registry:  ws.state.registry.Clone(h),
		baseline:  baseline,
	}
	s.logger = ws.logger.With(zap.String("session", s.ID), zap.String("dashboard", draft.ID))
	return s
}

func (s *Session) open() error {
	if s.closed {
		return models.NewError(models.KindInvalidTransition, "session %s is closed", s.ID)
	}
	return nil
}

func (s *Session) DashboardID() string {
	return s.ws.ID()
}

// Draft returns a copy of the edited document
func (s *Session) Draft() *models.Dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.draft.Clone()
	out.Variables = s.registry.Variables()
	return out
}

func (s *Session) DeclareVariable(v models.Variable) (VariableID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return noVariable, err
	}
	return s.registry.Declare(v)
}

func (s *Session) UpdateVariable(name string, v models.Variable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return err
	}
	return s.registry.Update(name, v)
}

func (s *Session) RemoveVariable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return err
	}
	return s.registry.Remove(name)
}

// AdmissibleDependencies answers against the session's draft variables
func (s *Session) AdmissibleDependencies(c Candidate) ([]models.Variable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewDependencyValidator(s.registry).AdmissibleDependencies(c)
}

// AddTab appends a tab and returns its id
func (s *Session) AddTab(title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return "", err
	}
	id := xid.New().String()
	s.draft.Tabs = append(s.draft.Tabs, models.Tab{ID: id, Title: title})
	s.relayout()
	return id, nil
}

func (s *Session) RenameTab(tabID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return err
	}
	i, err := s.tabIndex(tabID)
	if err != nil {
		return err
	}
	s.draft.Tabs[i].Title = title
	return nil
}

// RemoveTab drops a tab with its panels and cascades to the variables
// assigned exclusively to them. It returns the removed variable names.
func (s *Session) RemoveTab(tabID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return nil, err
	}
	i, err := s.tabIndex(tabID)
	if err != nil {
		return nil, err
	}
	if len(s.draft.Tabs) == 1 {
		return nil, models.NewError(models.KindInvalidTransition, "the last tab cannot be removed")
	}
	panels, _ := s.hierarchy.PanelsOf(tabID)

	reg := s.registry.Clone(s.hierarchy)
	removed, err := reg.DetachLayout([]string{tabID}, panels)
	if err != nil {
		return nil, err
	}
	s.registry = reg
	s.draft.Tabs = append(s.draft.Tabs[:i], s.draft.Tabs[i+1:]...)
	s.relayout()
	return removed, nil
}

// AddPanel appends a panel to a tab and returns its id
func (s *Session) AddPanel(tabID, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return "", err
	}
	i, err := s.tabIndex(tabID)
	if err != nil {
		return "", err
	}
	id := xid.New().String()
	s.draft.Tabs[i].Panels = append(s.draft.Tabs[i].Panels, models.Panel{ID: id, Title: title})
	s.relayout()
	return id, nil
}

// RemovePanel drops a panel and cascades to its exclusive panel variables
func (s *Session) RemovePanel(panelID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return nil, err
	}
	ti, pi, err := s.panelIndex(panelID)
	if err != nil {
		return nil, err
	}

	reg := s.registry.Clone(s.hierarchy)
	removed, err := reg.DetachLayout(nil, []string{panelID})
	if err != nil {
		return nil, err
	}
	s.registry = reg
	panels := s.draft.Tabs[ti].Panels
	s.draft.Tabs[ti].Panels = append(panels[:pi], panels[pi+1:]...)
	s.relayout()
	return removed, nil
}

// MovePanel reassigns a panel to another tab. Panel variables whose
// dependency no longer covers the new tab are reported by Save.
func (s *Session) MovePanel(panelID, tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return err
	}
	ti, pi, err := s.panelIndex(panelID)
	if err != nil {
		return err
	}
	dst, err := s.tabIndex(tabID)
	if err != nil {
		return err
	}
	if dst == ti {
		return nil
	}
	panel := s.draft.Tabs[ti].Panels[pi]
	panels := s.draft.Tabs[ti].Panels
	s.draft.Tabs[ti].Panels = append(panels[:pi], panels[pi+1:]...)
	s.draft.Tabs[dst].Panels = append(s.draft.Tabs[dst].Panels, panel)
	s.relayout()
	return nil
}

// PanelTime returns the draft time configuration of a panel and its state
func (s *Session) PanelTime(panelID string) (models.PanelTimeConfig, PanelTimeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(panelID)
	if err != nil {
		return models.PanelTimeConfig{}, "", err
	}
	cfg := panelTime(p)
	return cfg, TimeStateOf(&cfg), nil
}

func (s *Session) SetPanelTimeEnabled(panelID string, enabled bool) (models.PanelTimeConfig, error) {
	return s.editPanelTime(panelID, func(cfg models.PanelTimeConfig) (models.PanelTimeConfig, error) {
		return SetPanelTimeEnabled(cfg, enabled), nil
	})
}

func (s *Session) SetPanelTimeMode(panelID string, mode models.TimeMode) (models.PanelTimeConfig, error) {
	return s.editPanelTime(panelID, func(cfg models.PanelTimeConfig) (models.PanelTimeConfig, error) {
		return SetPanelTimeMode(cfg, mode)
	})
}

func (s *Session) SetPanelTimeRange(panelID string, r models.TimeRange) (models.PanelTimeConfig, error) {
	return s.editPanelTime(panelID, func(cfg models.PanelTimeConfig) (models.PanelTimeConfig, error) {
		return SetPanelTimeRange(cfg, r)
	})
}

// SetPanelTime applies any combination of the enabled, mode and range
// transitions, in that order, as one edit. If a step fails the panel keeps
// its previous config.
func (s *Session) SetPanelTime(panelID string, enabled *bool, mode *models.TimeMode, r *models.TimeRange) (models.PanelTimeConfig, error) {
	return s.editPanelTime(panelID, func(cfg models.PanelTimeConfig) (models.PanelTimeConfig, error) {
		var err error
		if enabled != nil {
			cfg = SetPanelTimeEnabled(cfg, *enabled)
		}
		if mode != nil {
			if cfg, err = SetPanelTimeMode(cfg, *mode); err != nil {
				return cfg, err
			}
		}
		if r != nil {
			if cfg, err = SetPanelTimeRange(cfg, *r); err != nil {
				return cfg, err
			}
		}
		return cfg, nil
	})
}

func (s *Session) editPanelTime(panelID string, edit func(models.PanelTimeConfig) (models.PanelTimeConfig, error)) (models.PanelTimeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return models.PanelTimeConfig{}, err
	}
	p, err := s.panel(panelID)
	if err != nil {
		return models.PanelTimeConfig{}, err
	}
	next, err := edit(panelTime(p))
	if err != nil {
		return panelTime(p), err
	}
	p.Time = &next
	return next.Clone(), nil
}

// Validate reports every problem that would block Save
func (s *Session) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validate()
}

func (s *Session) validate() error {
	var errs error
	if err := validateLayout(s.draft); err != nil {
		errs = multierr.Append(errs, err)
	}
	return multierr.Append(errs, s.registry.Verify())
}

// Changes describes what Save would change in the committed document
func (s *Session) Changes() (diff.Changelog, error) {
	committed := s.ws.Snapshot()
	draft := s.Draft()
	return diff.Diff(committed, draft, diff.DisableStructValues(), diff.AllowTypeMismatch(true))
}

// Save validates the draft, hands it to persist and then makes it the
// committed state in one step. Panel ranges the session did not edit keep
// whatever was applied to them meanwhile. A persist failure leaves
// everything as it was and keeps the session open.
func (s *Session) Save(persist func(*models.Dashboard) error) ([]string, error) {
	changes := countChanges(s.logger)(s.Changes())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	refreshed, err := s.ws.commit(s.draft, s.registry, s.baseline, persist)
	if err != nil {
		return nil, err
	}
	s.closed = true
	s.logger.Info("session saved", zap.Int("changes", changes), zap.Strings("refreshed", refreshed))
	return refreshed, nil
}

// countChanges sizes a changelog for the save log line. A failed diff is
// logged and counted as -1; it never blocks a save.
func countChanges(logger *zap.Logger) func(diff.Changelog, error) int {
	return func(changes diff.Changelog, err error) int {
		if err != nil {
			logger.Warn("session changelog unavailable", zap.Error(err))
			return -1
		}
		return len(changes)
	}
}

// Cancel drops the draft; committed state never saw it
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.logger.Debug("session cancelled")
}

func (s *Session) relayout() {
	s.hierarchy = NewHierarchy(s.draft)
	s.registry.Rebind(s.hierarchy)
}

func (s *Session) tabIndex(tabID string) (int, error) {
	for i, tab := range s.draft.Tabs {
		if tab.ID == tabID {
			return i, nil
		}
	}
	return -1, models.NewError(models.KindNotFound, "tab %q not found", tabID)
}

func (s *Session) panelIndex(panelID string) (int, int, error) {
	for i, tab := range s.draft.Tabs {
		for j, p := range tab.Panels {
			if p.ID == panelID {
				return i, j, nil
			}
		}
	}
	return -1, -1, models.NewError(models.KindNotFound, "panel %q not found", panelID)
}

func (s *Session) panel(panelID string) (*models.Panel, error) {
	ti, pi, err := s.panelIndex(panelID)
	if err != nil {
		return nil, err
	}
	return &s.draft.Tabs[ti].Panels[pi], nil
}

func panelTime(p *models.Panel) models.PanelTimeConfig {
	if p.Time == nil {
		return models.PanelTimeConfig{}
	}
	return p.Time.Clone()
}
