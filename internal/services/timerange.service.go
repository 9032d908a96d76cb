package services

import (
	"scopeboard/internal/models"
)

// PanelTimeState is the resolver state of one panel
type PanelTimeState string

const (
	StateFollowsGlobal PanelTimeState = "follows_global"
	StateIndividual    PanelTimeState = "individual"
	// StateUnconfigured exists only inside an edit session
	StateUnconfigured PanelTimeState = "unconfigured"
)

// TimeStateOf classifies a panel time configuration
func TimeStateOf(cfg *models.PanelTimeConfig) PanelTimeState {
	if cfg == nil || !cfg.Enabled || cfg.Mode != models.ModeIndividual {
		return StateFollowsGlobal
	}
	if cfg.Range == nil {
		return StateUnconfigured
	}
	return StateIndividual
}

// SetPanelTimeEnabled toggles the independent time affordance. Enabling
// starts in Global mode without a range; disabling clears mode and range.
func SetPanelTimeEnabled(cfg models.PanelTimeConfig, enabled bool) models.PanelTimeConfig {
	if enabled == cfg.Enabled {
		return cfg
	}
	if enabled {
		return models.PanelTimeConfig{Enabled: true, Mode: models.ModeGlobal}
	}
	return models.PanelTimeConfig{}
}

// SetPanelTimeMode switches between Global and Individual. Leaving
// Individual always drops the range, so coming back requires a new one.
func SetPanelTimeMode(cfg models.PanelTimeConfig, mode models.TimeMode) (models.PanelTimeConfig, error) {
	if !cfg.Enabled {
		return cfg, models.NewError(models.KindInvalidTransition, "panel time is disabled, enable it before choosing a mode")
	}
	switch mode {
	case models.ModeGlobal:
		return models.PanelTimeConfig{Enabled: true, Mode: models.ModeGlobal}, nil
	case models.ModeIndividual:
		if cfg.Mode == models.ModeIndividual {
			return cfg, nil
		}
		return models.PanelTimeConfig{Enabled: true, Mode: models.ModeIndividual}, nil
	}
	return cfg, models.NewError(models.KindInvalidTransition, "unknown time mode %q", mode)
}

// SetPanelTimeRange chooses the individual range
func SetPanelTimeRange(cfg models.PanelTimeConfig, r models.TimeRange) (models.PanelTimeConfig, error) {
	if !cfg.Enabled || cfg.Mode != models.ModeIndividual {
		return cfg, models.NewError(models.KindInvalidTransition, "a range can only be set in individual mode")
	}
	if err := r.Validate(); err != nil {
		return cfg, err
	}
	cfg.Range = &r
	return cfg, nil
}

// ValidatePanelTime rejects configurations that must not be persisted
func ValidatePanelTime(panelID string, cfg *models.PanelTimeConfig) error {
	if cfg == nil {
		return nil
	}
	if !cfg.Enabled {
		if cfg.Mode != "" || cfg.Range != nil {
			return models.NewError(models.KindInvalidTransition, "panel %q has time disabled but carries a mode or range", panelID)
		}
		return nil
	}
	switch cfg.Mode {
	case models.ModeGlobal:
		if cfg.Range != nil {
			return models.NewError(models.KindInvalidTransition, "panel %q follows the global range but carries its own", panelID)
		}
	case models.ModeIndividual:
		if cfg.Range == nil {
			return models.NewError(models.KindMissingRange, "panel %q uses an individual time range but none was chosen", panelID)
		}
		return cfg.Range.Validate()
	default:
		return models.NewError(models.KindInvalidTransition, "panel %q has unknown time mode %q", panelID, cfg.Mode)
	}
	return nil
}

// TimeResolver computes effective ranges over the committed dashboard
type TimeResolver struct {
	panels map[string]*models.Panel
}

// NewTimeResolver indexes the panels of d. The resolver reads d live, so
// commits made through it are visible to later lookups.
func NewTimeResolver(d *models.Dashboard) *TimeResolver {
	tr := &TimeResolver{panels: make(map[string]*models.Panel)}
	for i := range d.Tabs {
		for j := range d.Tabs[i].Panels {
			p := &d.Tabs[i].Panels[j]
			tr.panels[p.ID] = p
		}
	}
	return tr
}

// State returns the resolver state of a panel
func (tr *TimeResolver) State(panelID string) (PanelTimeState, error) {
	p, ok := tr.panels[panelID]
	if !ok {
		return "", models.NewError(models.KindNotFound, "panel %q not found", panelID)
	}
	return TimeStateOf(p.Time), nil
}

// EffectiveRange returns global for panels following it and the panel's own
// range otherwise; the two never influence each other.
func (tr *TimeResolver) EffectiveRange(panelID string, global models.TimeRange) (models.TimeRange, error) {
	state, err := tr.State(panelID)
	if err != nil {
		return models.TimeRange{}, err
	}
	switch state {
	case StateIndividual:
		return *tr.panels[panelID].Time.Range, nil
	case StateUnconfigured:
		return models.TimeRange{}, models.NewError(models.KindMissingRange, "panel %q has no individual range", panelID)
	}
	return global, nil
}

// IndividualRanges returns the committed range of every Individual panel
func (tr *TimeResolver) IndividualRanges() map[string]models.TimeRange {
	out := make(map[string]models.TimeRange)
	for id, p := range tr.panels {
		if TimeStateOf(p.Time) == StateIndividual {
			out[id] = *p.Time.Range
		}
	}
	return out
}

// FollowersOfGlobal lists the panels whose effective range is the global one
func (tr *TimeResolver) FollowersOfGlobal(order []string) []string {
	var out []string
	for _, id := range order {
		if p, ok := tr.panels[id]; ok && TimeStateOf(p.Time) == StateFollowsGlobal {
			out = append(out, id)
		}
	}
	return out
}

func (tr *TimeResolver) commitPanelRange(panelID string, r models.TimeRange) error {
	state, err := tr.State(panelID)
	if err != nil {
		return err
	}
	if state != StateIndividual {
		return models.NewError(models.KindInvalidTransition, "panel %q does not use an individual time range", panelID)
	}
	tr.panels[panelID].Time.Range = &r
	return nil
}
