package services

import (
	"scopeboard/internal/models"
)

// ResolvedVariable is a variable in scope together with its current values
type ResolvedVariable struct {
	models.Variable
	Values []string `json:"values"`
}

// PanelResolution is everything query construction needs for one panel
type PanelResolution struct {
	PanelID   string             `json:"panel_id"`
	TabID     string             `json:"tab_id"`
	Range     models.TimeRange   `json:"range"`
	Variables []ResolvedVariable `json:"variables"`
}

// Resolution is the read-only facade over committed state
type Resolution struct {
	dashboard *models.Dashboard
	hierarchy *Hierarchy
	registry  *Registry
	resolver  *TimeResolver
	values    *ValueStore
}

func NewResolution(d *models.Dashboard, h *Hierarchy, reg *Registry, tr *TimeResolver, values *ValueStore) *Resolution {
	return &Resolution{dashboard: d, hierarchy: h, registry: reg, resolver: tr, values: values}
}

// EffectiveRange is the range the panel's query must use
func (res *Resolution) EffectiveRange(panelID string) (models.TimeRange, error) {
	return res.resolver.EffectiveRange(panelID, res.dashboard.GlobalTime)
}

// VisibleVariables lists the variables in scope for a panel in evaluation
// order, upstreams first.
func (res *Resolution) VisibleVariables(panelID string) ([]ResolvedVariable, error) {
	tabID, err := res.hierarchy.TabOf(panelID)
	if err != nil {
		return nil, err
	}
	visible := res.registry.ListVisibleTo(VariableContext{TabID: tabID, PanelID: panelID})
	ordered := res.registry.EvaluationOrder(visible)

	out := make([]ResolvedVariable, 0, len(ordered))
	for _, v := range ordered {
		out = append(out, ResolvedVariable{Variable: v, Values: res.values.Get(v.Name)})
	}
	return out, nil
}

// Resolve combines EffectiveRange and VisibleVariables
func (res *Resolution) Resolve(panelID string) (*PanelResolution, error) {
	r, err := res.EffectiveRange(panelID)
	if err != nil {
		return nil, err
	}
	vars, err := res.VisibleVariables(panelID)
	if err != nil {
		return nil, err
	}
	tabID, _ := res.hierarchy.TabOf(panelID)
	return &PanelResolution{PanelID: panelID, TabID: tabID, Range: r, Variables: vars}, nil
}
