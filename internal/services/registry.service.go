package services

import (
	"github.com/emirpasic/gods/sets/hashset"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"scopeboard/internal/models"
)

// VariableID is the arena index of a declared variable
type VariableID int

const noVariable VariableID = -1

// VariableContext is the explicit {tab, panel} a query is made from
type VariableContext struct {
	TabID   string `json:"tab_id" form:"tab"`
	PanelID string `json:"panel_id" form:"panel"`
}

type varNode struct {
	id       VariableID
	v        models.Variable
	upstream VariableID
	tabs     *hashset.Set
	panels   *hashset.Set
}

// Registry owns the declared variables of one dashboard.
// Nodes live in an arena indexed by VariableID; ids grow with declaration
// order, which is also the tie-break order for visibility and evaluation.
type Registry struct {
	hierarchy *Hierarchy
	nodes     []*varNode
	byName    map[string]VariableID
	logger    *zap.Logger
}

// NewRegistry creates an empty registry bound to a layout snapshot
func NewRegistry(h *Hierarchy, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		hierarchy: h,
		byName:    make(map[string]VariableID),
		logger:    logger,
	}
}

// LoadRegistry rebuilds a registry from persisted variables. Upstreams may be
// declared after their dependents in the list, so edges are linked in a
// second pass once every node exists.
func LoadRegistry(h *Hierarchy, vars []models.Variable, logger *zap.Logger) (*Registry, error) {
	r := NewRegistry(h, logger)
	for _, v := range vars {
		if err := r.checkShape(v); err != nil {
			return nil, err
		}
		if _, exists := r.byName[v.Name]; exists {
			return nil, models.NewError(models.KindDuplicateName, "variable %q already exists", v.Name)
		}
		r.insert(v)
	}

	validator := NewDependencyValidator(r)
	for _, n := range r.nodes {
		up := n.v.Upstream()
		if up == "" {
			continue
		}
		if err := validator.Check(CandidateOf(n.v), up); err != nil {
			return nil, err
		}
		n.upstream = r.byName[up]
	}
	return r, nil
}

func (r *Registry) insert(v models.Variable) *varNode {
	n := &varNode{
		id:       VariableID(len(r.nodes)),
		v:        v.Clone(),
		upstream: noVariable,
		tabs:     newStringSet(v.AssignedTabs),
		panels:   newStringSet(v.AssignedPanels),
	}
	r.nodes = append(r.nodes, n)
	r.byName[v.Name] = n.id
	return n
}

// Declare validates and adds a variable
func (r *Registry) Declare(v models.Variable) (VariableID, error) {
	if err := r.checkShape(v); err != nil {
		return noVariable, err
	}
	if _, exists := r.byName[v.Name]; exists {
		return noVariable, models.NewError(models.KindDuplicateName, "variable %q already exists", v.Name)
	}

	upstream := noVariable
	if up := v.Upstream(); up != "" {
		if up == v.Name {
			return noVariable, models.NewError(models.KindCyclicDependency, "variable %q cannot depend on itself", v.Name)
		}
		if err := NewDependencyValidator(r).Check(CandidateOf(v), up); err != nil {
			return noVariable, err
		}
		upstream = r.byName[up]
	}

	n := r.insert(v)
	n.upstream = upstream
	r.logger.Debug("variable declared",
		zap.String("name", v.Name),
		zap.String("scope", string(v.Scope)),
		zap.String("depends_on", v.Upstream()))
	return n.id, nil
}

// Update redefines an existing variable. The new definition's own edge and
// every dependent's edge are re-validated before anything changes.
func (r *Registry) Update(name string, v models.Variable) error {
	id, ok := r.byName[name]
	if !ok {
		return models.NewError(models.KindNotFound, "variable %q not found", name)
	}
	if err := r.checkShape(v); err != nil {
		return err
	}
	if v.Name != name {
		if _, exists := r.byName[v.Name]; exists {
			return models.NewError(models.KindDuplicateName, "variable %q already exists", v.Name)
		}
	}

	validator := NewDependencyValidator(r)
	upstream := noVariable
	if up := v.Upstream(); up != "" {
		if up == v.Name && v.Name != name {
			return models.NewError(models.KindCyclicDependency, "variable %q cannot depend on itself", v.Name)
		}
		// the candidate keeps the old name while the arena still holds it
		cand := CandidateOf(v)
		cand.Name = name
		if err := validator.Check(cand, up); err != nil {
			return err
		}
		upstream = r.byName[up]
	}

	replacement := &varNode{
		id:     id,
		v:      v.Clone(),
		tabs:   newStringSet(v.AssignedTabs),
		panels: newStringSet(v.AssignedPanels),
	}
	for _, dep := range r.dependents(id) {
		if err := validator.checkRules(CandidateOf(dep.v), replacement); err != nil {
			return err
		}
	}

	replacement.upstream = upstream
	r.nodes[id] = replacement
	if v.Name != name {
		delete(r.byName, name)
		r.byName[v.Name] = id
		for _, dep := range r.dependents(id) {
			dep.v.DependsOn.Variable = v.Name
		}
	}
	r.logger.Debug("variable updated", zap.String("name", name), zap.String("new_name", v.Name))
	return nil
}

// Remove deletes a variable nobody depends on
func (r *Registry) Remove(name string) error {
	id, ok := r.byName[name]
	if !ok {
		return models.NewError(models.KindNotFound, "variable %q not found", name)
	}
	if deps := r.dependents(id); len(deps) > 0 {
		return models.NewScopeViolation(models.RuleHasDependents,
			"variable %q is used by %q", name, deps[0].v.Name)
	}
	r.nodes[id] = nil
	delete(r.byName, name)
	r.logger.Debug("variable removed", zap.String("name", name))
	return nil
}

// Get returns a copy of the named variable
func (r *Registry) Get(name string) (models.Variable, bool) {
	n := r.node(name)
	if n == nil {
		return models.Variable{}, false
	}
	return n.v.Clone(), true
}

// Variables lists every variable in declaration order
func (r *Registry) Variables() []models.Variable {
	out := make([]models.Variable, 0, len(r.byName))
	for _, n := range r.nodes {
		if n != nil {
			out = append(out, n.v.Clone())
		}
	}
	return out
}

// ListVisibleTo returns the variables visible from ctx: Global, then Tab,
// then Panel, each group in declaration order.
func (r *Registry) ListVisibleTo(ctx VariableContext) []models.Variable {
	if ctx.TabID == "" && ctx.PanelID != "" {
		if tabID, err := r.hierarchy.TabOf(ctx.PanelID); err == nil {
			ctx.TabID = tabID
		}
	}

	var out []models.Variable
	for _, scope := range []models.Scope{models.ScopeGlobal, models.ScopeTab, models.ScopePanel} {
		for _, n := range r.nodes {
			if n == nil || n.v.Scope != scope {
				continue
			}
			if n.visibleTo(ctx) {
				out = append(out, n.v.Clone())
			}
		}
	}
	return out
}

func (n *varNode) visibleTo(ctx VariableContext) bool {
	switch n.v.Scope {
	case models.ScopeGlobal:
		return true
	case models.ScopeTab:
		return ctx.TabID != "" && n.tabs.Contains(ctx.TabID)
	case models.ScopePanel:
		return ctx.PanelID != "" && n.panels.Contains(ctx.PanelID)
	}
	return false
}

// Downstream returns every variable that transitively depends on name,
// nearest first.
func (r *Registry) Downstream(name string) []string {
	id, ok := r.byName[name]
	if !ok {
		return nil
	}
	var out []string
	queue := []VariableID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range r.dependents(cur) {
			out = append(out, dep.v.Name)
			queue = append(queue, dep.id)
		}
	}
	return out
}

// EvaluationOrder sorts vars so upstreams come before their dependents.
// It is stable: independent variables keep their input order.
func (r *Registry) EvaluationOrder(vars []models.Variable) []models.Variable {
	pending := make(map[string]bool, len(vars))
	for _, v := range vars {
		pending[v.Name] = true
	}

	out := make([]models.Variable, 0, len(vars))
	for len(out) < len(vars) {
		progressed := false
		for _, v := range vars {
			if !pending[v.Name] {
				continue
			}
			if up := v.Upstream(); up != "" && pending[up] {
				continue
			}
			pending[v.Name] = false
			out = append(out, v)
			progressed = true
		}
		if !progressed {
			// unreachable while the arena is acyclic
			for _, v := range vars {
				if pending[v.Name] {
					out = append(out, v)
				}
			}
			break
		}
	}
	return out
}

// Clone copies the registry onto another layout snapshot
func (r *Registry) Clone(h *Hierarchy) *Registry {
	out := &Registry{
		hierarchy: h,
		nodes:     make([]*varNode, len(r.nodes)),
		byName:    make(map[string]VariableID, len(r.byName)),
		logger:    r.logger,
	}
	for i, n := range r.nodes {
		if n == nil {
			continue
		}
		out.nodes[i] = &varNode{
			id:       n.id,
			v:        n.v.Clone(),
			upstream: n.upstream,
			tabs:     newStringSet(n.v.AssignedTabs),
			panels:   newStringSet(n.v.AssignedPanels),
		}
	}
	for name, id := range r.byName {
		out.byName[name] = id
	}
	return out
}

// DetachLayout drops removed tabs and panels from every assignment list.
// Variables left with no assignment are removed; a surviving variable whose
// upstream would disappear makes the whole detach fail untouched.
func (r *Registry) DetachLayout(tabIDs, panelIDs []string) ([]string, error) {
	tabs := newStringSet(tabIDs)
	panels := newStringSet(panelIDs)

	removed := make(map[VariableID]bool)
	narrowed := make(map[VariableID]models.Variable)
	for _, n := range r.nodes {
		if n == nil {
			continue
		}
		v := n.v.Clone()
		switch v.Scope {
		case models.ScopeTab:
			v.AssignedTabs = without(v.AssignedTabs, tabs)
			if len(v.AssignedTabs) == 0 {
				removed[n.id] = true
				continue
			}
		case models.ScopePanel:
			v.AssignedPanels = without(v.AssignedPanels, panels)
			if len(v.AssignedPanels) == 0 {
				removed[n.id] = true
				continue
			}
		default:
			continue
		}
		if len(v.AssignedTabs) != len(n.v.AssignedTabs) || len(v.AssignedPanels) != len(n.v.AssignedPanels) {
			narrowed[n.id] = v
		}
	}

	for _, n := range r.nodes {
		if n == nil || removed[n.id] || n.upstream == noVariable {
			continue
		}
		if removed[n.upstream] {
			return nil, models.NewScopeViolation(models.RuleHasDependents,
				"variable %q depends on %q which would be removed", n.v.Name, r.nodes[n.upstream].v.Name)
		}
	}

	var names []string
	for id := range r.nodes {
		vid := VariableID(id)
		if removed[vid] {
			names = append(names, r.nodes[vid].v.Name)
			delete(r.byName, r.nodes[vid].v.Name)
			r.nodes[vid] = nil
		} else if v, ok := narrowed[vid]; ok {
			n := r.nodes[vid]
			n.v = v
			n.tabs = newStringSet(v.AssignedTabs)
			n.panels = newStringSet(v.AssignedPanels)
		}
	}
	if len(names) > 0 {
		r.logger.Info("variables removed with layout", zap.Strings("names", names))
	}
	return names, nil
}

// Rebind points the registry at a new layout snapshot; call Verify after
func (r *Registry) Rebind(h *Hierarchy) {
	r.hierarchy = h
}

// Verify re-checks every variable against the current layout
func (r *Registry) Verify() error {
	var errs error
	validator := NewDependencyValidator(r)
	for _, n := range r.nodes {
		if n == nil {
			continue
		}
		if err := r.checkShape(n.v); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if n.upstream == noVariable {
			continue
		}
		if err := validator.checkEdge(CandidateOf(n.v), r.nodes[n.upstream]); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (r *Registry) node(name string) *varNode {
	id, ok := r.byName[name]
	if !ok {
		return nil
	}
	return r.nodes[id]
}

func (r *Registry) dependents(id VariableID) []*varNode {
	var out []*varNode
	for _, n := range r.nodes {
		if n != nil && n.upstream == id && n.id != id {
			out = append(out, n)
		}
	}
	return out
}

// checkShape enforces the scope-specific assignment rules
func (r *Registry) checkShape(v models.Variable) error {
	if v.Name == "" {
		return models.NewError(models.KindInvalidName, "variable name is required")
	}
	if v.DependsOn != nil && v.DependsOn.Variable == "" {
		return models.NewError(models.KindNotFound, "variable %q has a dependency without an upstream", v.Name)
	}

	switch v.Scope {
	case models.ScopeGlobal:
		if len(v.AssignedTabs) > 0 || len(v.AssignedPanels) > 0 {
			return models.NewError(models.KindInvalidScope, "global variable %q cannot be assigned to tabs or panels", v.Name)
		}
	case models.ScopeTab:
		if len(v.AssignedTabs) == 0 {
			return models.NewError(models.KindInvalidScope, "tab variable %q needs at least one tab", v.Name)
		}
		if len(v.AssignedPanels) > 0 {
			return models.NewError(models.KindInvalidScope, "tab variable %q cannot be assigned to panels", v.Name)
		}
		if err := r.checkIDs(v.Name, v.AssignedTabs, r.hierarchy.HasTab, "tab"); err != nil {
			return err
		}
	case models.ScopePanel:
		if len(v.AssignedPanels) == 0 {
			return models.NewError(models.KindInvalidScope, "panel variable %q needs at least one panel", v.Name)
		}
		if len(v.AssignedTabs) > 0 {
			return models.NewError(models.KindInvalidScope, "panel variable %q cannot be assigned to tabs", v.Name)
		}
		if err := r.checkIDs(v.Name, v.AssignedPanels, r.hierarchy.HasPanel, "panel"); err != nil {
			return err
		}
	default:
		return models.NewError(models.KindInvalidScope, "variable %q has unknown scope %q", v.Name, v.Scope)
	}
	return nil
}

func (r *Registry) checkIDs(name string, ids []string, exists func(string) bool, what string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return models.NewError(models.KindInvalidScope, "variable %q lists %s %q twice", name, what, id)
		}
		seen[id] = true
		if !exists(id) {
			return models.NewError(models.KindNotFound, "%s %q assigned to variable %q not found", what, id, name)
		}
	}
	return nil
}
