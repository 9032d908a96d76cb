package services

import (
	"github.com/emirpasic/gods/sets/hashset"

	"scopeboard/internal/models"
)

// Candidate is a variable being edited, not necessarily declared yet
type Candidate struct {
	Name           string       `json:"name"`
	Scope          models.Scope `json:"scope"`
	AssignedTabs   []string     `json:"assigned_tabs,omitempty"`
	AssignedPanels []string     `json:"assigned_panels,omitempty"`
}

// CandidateOf describes a declared variable as a candidate
func CandidateOf(v models.Variable) Candidate {
	return Candidate{
		Name:           v.Name,
		Scope:          v.Scope,
		AssignedTabs:   v.AssignedTabs,
		AssignedPanels: v.AssignedPanels,
	}
}

// DependencyValidator decides which variables a candidate may depend on.
// It never mutates the registry.
type DependencyValidator struct {
	registry *Registry
}

func NewDependencyValidator(r *Registry) *DependencyValidator {
	return &DependencyValidator{registry: r}
}

// AdmissibleDependencies lists the declared variables c may depend on, in
// registry visibility order. A Tab upstream must be visible from every tab
// the candidate covers, so an edge is never undefined on one of them.
func (dv *DependencyValidator) AdmissibleDependencies(c Candidate) ([]models.Variable, error) {
	cover, err := dv.coverage(c)
	if err != nil {
		return nil, err
	}

	var out []models.Variable
	for _, scope := range []models.Scope{models.ScopeGlobal, models.ScopeTab} {
		for _, n := range dv.registry.nodes {
			if n == nil || n.v.Scope != scope || n.v.Name == c.Name {
				continue
			}
			if dv.rules(c, cover, n) != nil {
				continue
			}
			if dv.closesCycle(c.Name, n) {
				continue
			}
			out = append(out, n.v.Clone())
		}
	}
	return out, nil
}

// Check validates a single proposed edge c -> upstream
func (dv *DependencyValidator) Check(c Candidate, upstream string) error {
	up := dv.registry.node(upstream)
	if up == nil {
		return models.NewError(models.KindNotFound, "upstream variable %q not found", upstream)
	}
	return dv.checkEdge(c, up)
}

func (dv *DependencyValidator) checkEdge(c Candidate, up *varNode) error {
	if up.v.Name == c.Name || dv.closesCycle(c.Name, up) {
		return models.NewError(models.KindCyclicDependency,
			"variable %q depending on %q would create a cycle", c.Name, up.v.Name)
	}
	return dv.checkRules(c, up)
}

func (dv *DependencyValidator) checkRules(c Candidate, up *varNode) error {
	cover, err := dv.coverage(c)
	if err != nil {
		return err
	}
	return dv.rules(c, cover, up)
}

// rules applies the scope admissibility table; cover holds the tabs the
// candidate is reachable from (nil for Global candidates).
func (dv *DependencyValidator) rules(c Candidate, cover *hashset.Set, up *varNode) error {
	switch {
	case up.v.Scope == models.ScopePanel:
		return models.NewScopeViolation(models.RulePanelUpstream,
			"%q is panel scoped and cannot be depended on", up.v.Name)
	case c.Scope == models.ScopeGlobal && up.v.Scope != models.ScopeGlobal:
		return models.NewScopeViolation(models.RuleGlobalUpstreamOnly,
			"global variable %q can only depend on global variables, %q is %s scoped", c.Name, up.v.Name, up.v.Scope)
	case up.v.Scope == models.ScopeTab && !isSuperset(up.tabs, cover):
		return models.NewScopeViolation(models.RuleTabCoverage,
			"%q is not assigned to every tab %q is used on", up.v.Name, c.Name)
	}
	return nil
}

// closesCycle walks the upstream chain starting at from and reports whether
// it reaches the candidate.
func (dv *DependencyValidator) closesCycle(candidate string, from *varNode) bool {
	visited := make(map[VariableID]bool)
	for n := from; n != nil; {
		if n.v.Name == candidate {
			return true
		}
		if visited[n.id] || n.upstream == noVariable {
			return false
		}
		visited[n.id] = true
		n = dv.registry.nodes[n.upstream]
	}
	return false
}

// coverage resolves the set of tabs a candidate is used on
func (dv *DependencyValidator) coverage(c Candidate) (*hashset.Set, error) {
	h := dv.registry.hierarchy
	switch c.Scope {
	case models.ScopeGlobal:
		return hashset.New(), nil
	case models.ScopeTab:
		if len(c.AssignedTabs) == 0 {
			return nil, models.NewError(models.KindInvalidScope, "tab scoped candidate %q needs at least one tab", c.Name)
		}
		for _, tabID := range c.AssignedTabs {
			if !h.HasTab(tabID) {
				return nil, models.NewError(models.KindNotFound, "tab %q not found", tabID)
			}
		}
		return newStringSet(c.AssignedTabs), nil
	case models.ScopePanel:
		if len(c.AssignedPanels) == 0 {
			return nil, models.NewError(models.KindInvalidScope, "panel scoped candidate %q needs at least one panel", c.Name)
		}
		cover := hashset.New()
		for _, panelID := range c.AssignedPanels {
			tabID, err := h.TabOf(panelID)
			if err != nil {
				return nil, err
			}
			cover.Add(tabID)
		}
		return cover, nil
	}
	return nil, models.NewError(models.KindInvalidScope, "unknown scope %q", c.Scope)
}
