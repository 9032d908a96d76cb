package services

import (
	"net/url"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"scopeboard/internal/models"
)

// DefaultGlobalTime is used for dashboards persisted without a range
var DefaultGlobalTime = models.Relative(15, models.UnitMinute)

type committedState struct {
	dashboard  *models.Dashboard
	hierarchy  *Hierarchy
	registry   *Registry
	resolver   *TimeResolver
	staging    *StagingController
	resolution *Resolution
}

// Workspace is the live, committed state of one dashboard. The core itself
// is single-writer; the mutex serialises the HTTP host's concurrent calls.
type Workspace struct {
	mu       sync.Mutex
	state    *committedState
	values   *ValueStore
	notifier RefreshNotifier
	logger   *zap.Logger

	// persist writes committed view state back to storage; dirty is set
	// while the last write is missing.
	persist func(*models.Dashboard) error
	dirty   bool
}

// NewWorkspace validates a persisted dashboard and builds its state
func NewWorkspace(d *models.Dashboard, notifier RefreshNotifier, logger *zap.Logger) (*Workspace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d = d.Clone()
	if len(d.Tabs) == 0 {
		d.Tabs = []models.Tab{{ID: models.DefaultTabID, Title: "Default"}}
	}
	if d.GlobalTime.Kind == "" {
		d.GlobalTime = DefaultGlobalTime
	}
	if err := validateLayout(d); err != nil {
		return nil, err
	}

	h := NewHierarchy(d)
	reg, err := LoadRegistry(h, d.Variables, logger)
	if err != nil {
		return nil, err
	}
	d.Variables = nil

	ws := &Workspace{values: NewValueStore(), notifier: notifier, logger: logger}
	ws.state = ws.build(d, h, reg)
	return ws, nil
}

func (ws *Workspace) build(d *models.Dashboard, h *Hierarchy, reg *Registry) *committedState {
	tr := NewTimeResolver(d)
	return &committedState{
		dashboard:  d,
		hierarchy:  h,
		registry:   reg,
		resolver:   tr,
		staging:    NewStagingController(d, h, tr, ws.notifier, ws.logger),
		resolution: NewResolution(d, h, reg, tr, ws.values),
	}
}

// validateLayout checks ids and panel time configurations
func validateLayout(d *models.Dashboard) error {
	if err := d.GlobalTime.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, tab := range d.Tabs {
		if tab.ID == "" || seen[tab.ID] {
			return models.NewError(models.KindInvalidName, "tab id %q is empty or duplicated", tab.ID)
		}
		seen[tab.ID] = true
		for _, p := range tab.Panels {
			if p.ID == "" || seen[p.ID] {
				return models.NewError(models.KindInvalidName, "panel id %q is empty or duplicated", p.ID)
			}
			seen[p.ID] = true
			if err := ValidatePanelTime(p.ID, p.Time); err != nil {
				return err
			}
		}
	}
	return nil
}

// ID returns the dashboard id
func (ws *Workspace) ID() string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.state.dashboard.ID
}

// Snapshot returns a deep copy of the committed dashboard document
func (ws *Workspace) Snapshot() *models.Dashboard {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.snapshot()
}

func (ws *Workspace) snapshot() *models.Dashboard {
	out := ws.state.dashboard.Clone()
	out.Variables = ws.state.registry.Variables()
	return out
}

// Resolve returns the effective range and variables of a panel
func (ws *Workspace) Resolve(panelID string) (*PanelResolution, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.state.resolution.Resolve(panelID)
}

// EffectiveRange is the facade read for query construction
func (ws *Workspace) EffectiveRange(panelID string) (models.TimeRange, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.state.resolution.EffectiveRange(panelID)
}

// VisibleVariables is the facade read for query construction
func (ws *Workspace) VisibleVariables(panelID string) ([]ResolvedVariable, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.state.resolution.VisibleVariables(panelID)
}

// ListVisibleTo exposes the registry visibility query
func (ws *Workspace) ListVisibleTo(ctx VariableContext) []models.Variable {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.state.registry.ListVisibleTo(ctx)
}

// AdmissibleDependencies answers against committed variables
func (ws *Workspace) AdmissibleDependencies(c Candidate) ([]models.Variable, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return NewDependencyValidator(ws.state.registry).AdmissibleDependencies(c)
}

func (ws *Workspace) Stage(target string, r models.TimeRange) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.state.staging.Stage(target, r)
}

// Apply commits the staged value of target and persists the new committed
// ranges
func (ws *Workspace) Apply(target string) (ApplyResult, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	res, err := ws.state.staging.Apply(target)
	if err == nil && res.Applied {
		ws.persistCommitted()
	}
	return res, err
}

// persistCommitted hands the committed document to persist. A failed write
// leaves the workspace dirty.
func (ws *Workspace) persistCommitted() {
	ws.dirty = true
	if ws.persist == nil {
		return
	}
	if err := ws.persist(ws.snapshot()); err != nil {
		ws.logger.Warn("committed time ranges not persisted",
			zap.String("dashboard", ws.state.dashboard.ID),
			zap.Error(err))
		return
	}
	ws.dirty = false
}

// Flush retries a missed write and reports whether storage now holds the
// committed state
func (ws *Workspace) Flush() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.dirty {
		ws.persistCommitted()
	}
	return !ws.dirty
}

func (ws *Workspace) Discard(target string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.state.staging.Discard(target)
}

// Picker returns the staged and committed values of one picker
func (ws *Workspace) Picker(target string) (staged *models.TimeRange, committed models.TimeRange, err error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if r, ok := ws.state.staging.Staged(target); ok {
		staged = &r
	}
	committed, err = ws.state.staging.Committed(target)
	return staged, committed, err
}

// ShareParams returns the committed URL representation
func (ws *Workspace) ShareParams() url.Values {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.state.staging.ShareParams()
}

// RestoreParams commits the ranges carried by a shared link. Every range is
// staged first; if any is rejected nothing is applied and the pickers keep
// whatever was staged on them before.
func (ws *Workspace) RestoreParams(values url.Values) ([]ApplyResult, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	global, panels, err := DecodeTimeParams(values)
	if err != nil {
		return nil, err
	}
	ranges := make(map[string]models.TimeRange, len(panels)+1)
	targets := make([]string, 0, len(panels)+1)
	if global != nil {
		ranges[GlobalPicker] = *global
		targets = append(targets, GlobalPicker)
	}
	ids := make([]string, 0, len(panels))
	for id := range panels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ranges[id] = panels[id]
		targets = append(targets, id)
	}

	sc := ws.state.staging
	previous := make(map[string]models.TimeRange)
	for i, t := range targets {
		if r, ok := sc.Staged(t); ok {
			previous[t] = r
		}
		if err := sc.Stage(t, ranges[t]); err != nil {
			for _, done := range targets[:i] {
				if r, ok := previous[done]; ok {
					sc.staged[done] = r
				} else {
					sc.Discard(done)
				}
			}
			return nil, err
		}
	}

	results := make([]ApplyResult, 0, len(targets))
	applied := false
	for _, t := range targets {
		res, err := sc.Apply(t)
		if err != nil {
			return results, err
		}
		applied = applied || res.Applied
		results = append(results, res)
	}
	if applied {
		ws.persistCommitted()
	}
	return results, nil
}

// SetValue commits the current values of a variable and refreshes every
// panel that sees it or one of its cleared dependents.
func (ws *Workspace) SetValue(name string, values []string) ([]string, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	st := ws.state
	cleared, err := ws.values.Set(st.registry, name, values)
	if err != nil {
		return nil, err
	}

	changed := append([]string{name}, cleared...)
	var refreshed []string
	for _, panelID := range st.hierarchy.Panels() {
		tabID, _ := st.hierarchy.TabOf(panelID)
		for _, v := range st.registry.ListVisibleTo(VariableContext{TabID: tabID, PanelID: panelID}) {
			if contains(changed, v.Name) {
				refreshed = append(refreshed, panelID)
				break
			}
		}
	}
	ws.notify(models.CauseVariable, name, refreshed)
	return refreshed, nil
}

// commit swaps in a validated draft from an edit session. The dashboard-wide
// range and the time config of every panel the session left untouched keep
// their live committed values; baseline holds the panel configs the session
// started from. The merged document goes to persist before anything
// changes. Panels whose effective range or variable set changed are
// refreshed once.
func (ws *Workspace) commit(draft *models.Dashboard, reg *Registry, baseline map[string]models.PanelTimeConfig, persist func(*models.Dashboard) error) ([]string, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	before := ws.state
	draft = draft.Clone()
	draft.Variables = nil
	draft.GlobalTime = before.dashboard.GlobalTime
	keepLivePanelTimes(draft, before.dashboard, baseline)
	h := NewHierarchy(draft)
	reg = reg.Clone(h)

	if persist != nil {
		doc := draft.Clone()
		doc.Variables = reg.Variables()
		if err := persist(doc); err != nil {
			return nil, err
		}
		ws.dirty = false
	}
	after := ws.build(draft, h, reg)

	for target, r := range before.staging.staged {
		if after.staging.checkTarget(target) == nil {
			after.staging.staged[target] = r
		}
	}
	ws.values.Prune(reg)

	var refreshed []string
	for _, panelID := range h.Panels() {
		if panelChanged(before, after, panelID) {
			refreshed = append(refreshed, panelID)
		}
	}
	ws.state = after
	ws.notify(models.CauseSave, draft.ID, refreshed)
	return refreshed, nil
}

// keepLivePanelTimes puts the live config back on every panel whose draft
// config still equals the one the session started from
func keepLivePanelTimes(draft, live *models.Dashboard, baseline map[string]models.PanelTimeConfig) {
	liveTimes := make(map[string]*models.PanelTimeConfig)
	for _, tab := range live.Tabs {
		for _, p := range tab.Panels {
			liveTimes[p.ID] = p.Time
		}
	}
	for i := range draft.Tabs {
		for j := range draft.Tabs[i].Panels {
			p := &draft.Tabs[i].Panels[j]
			base, tracked := baseline[p.ID]
			current, exists := liveTimes[p.ID]
			if !tracked || !exists || !samePanelTime(base, panelTime(p)) {
				continue
			}
			if current == nil {
				p.Time = nil
				continue
			}
			cfg := current.Clone()
			p.Time = &cfg
		}
	}
}

func samePanelTime(a, b models.PanelTimeConfig) bool {
	if a.Enabled != b.Enabled || a.Mode != b.Mode {
		return false
	}
	if a.Range == nil || b.Range == nil {
		return a.Range == nil && b.Range == nil
	}
	return a.Range.Equal(*b.Range)
}

func panelChanged(before, after *committedState, panelID string) bool {
	if !before.hierarchy.HasPanel(panelID) {
		return true
	}
	r1, err1 := before.resolution.EffectiveRange(panelID)
	r2, err2 := after.resolution.EffectiveRange(panelID)
	if err1 != nil || err2 != nil || !r1.Equal(r2) {
		return true
	}
	v1, _ := before.resolution.VisibleVariables(panelID)
	v2, _ := after.resolution.VisibleVariables(panelID)
	if len(v1) != len(v2) {
		return true
	}
	for i := range v1 {
		if v1[i].Name != v2[i].Name || v1[i].Upstream() != v2[i].Upstream() {
			return true
		}
	}
	return false
}

func (ws *Workspace) notify(cause models.RefreshCause, source string, panels []string) {
	if ws.notifier == nil || len(panels) == 0 {
		return
	}
	ws.notifier.NotifyRefresh(models.RefreshEvent{
		DashboardID: ws.state.dashboard.ID,
		Cause:       cause,
		Source:      source,
		PanelIDs:    panels,
		Timestamp:   time.Now(),
	})
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
