package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scopeboard/internal/models"
)

func newFixtureRegistry(t *testing.T, vars ...models.Variable) *Registry {
	t.Helper()
	r := NewRegistry(NewHierarchy(fixtureDashboard()), nil)
	for _, v := range vars {
		_, err := r.Declare(v)
		require.NoError(t, err, "declare %s", v.Name)
	}
	return r
}

func TestDeclareAssignsIncreasingIDs(t *testing.T) {
	r := NewRegistry(NewHierarchy(fixtureDashboard()), nil)

	first, err := r.Declare(globalVar("cluster"))
	require.NoError(t, err)
	second, err := r.Declare(tabVar("namespace", "tab1"))
	require.NoError(t, err)

	assert.Less(t, int(first), int(second))
	v, ok := r.Get("namespace")
	require.True(t, ok)
	assert.Equal(t, models.ScopeTab, v.Scope)
}

func TestDeclareRejects(t *testing.T) {
	tests := []struct {
		name string
		v    models.Variable
		want error
	}{
		{"duplicate name", tabVar("cluster", "tab2"), models.ErrDuplicateName},
		{"empty name", globalVar(""), models.ErrInvalidName},
		{"tab without tabs", tabVar("ns"), models.ErrInvalidScope},
		{"panel without panels", panelVar("pod"), models.ErrInvalidScope},
		{"global with tabs", models.Variable{Name: "g", Scope: models.ScopeGlobal, AssignedTabs: []string{"tab1"}}, models.ErrInvalidScope},
		{"tab with panels", models.Variable{Name: "t", Scope: models.ScopeTab, AssignedTabs: []string{"tab1"}, AssignedPanels: []string{"p1"}}, models.ErrInvalidScope},
		{"unknown scope", models.Variable{Name: "x", Scope: "dashboard"}, models.ErrInvalidScope},
		{"repeated tab", tabVar("ns", "tab1", "tab1"), models.ErrInvalidScope},
		{"stale tab", tabVar("ns", "tab9"), models.ErrNotFound},
		{"stale panel", panelVar("pod", "p9"), models.ErrNotFound},
		{"unknown upstream", dependsOn(globalVar("g"), "missing", "f"), models.ErrNotFound},
		{"self reference", dependsOn(globalVar("g"), "g", "f"), models.ErrCyclicDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFixtureRegistry(t, globalVar("cluster"))
			_, err := r.Declare(tt.v)
			assert.ErrorIs(t, err, tt.want)
			assert.Len(t, r.Variables(), 1, "a rejected declare must not change the registry")
		})
	}
}

func TestListVisibleToOrdering(t *testing.T) {
	// declared panel, tab, global, tab: output groups by scope first
	r := newFixtureRegistry(t,
		panelVar("pod", "p1"),
		tabVar("namespace", "tab1"),
		globalVar("cluster"),
		tabVar("service", "tab1", "tab2"),
	)

	got := r.ListVisibleTo(VariableContext{TabID: "tab1", PanelID: "p1"})
	assert.Equal(t, []string{"cluster", "namespace", "service", "pod"}, names(got))
}

func TestListVisibleToDerivesTabFromPanel(t *testing.T) {
	r := newFixtureRegistry(t, globalVar("cluster"), tabVar("namespace", "tab1"))

	got := r.ListVisibleTo(VariableContext{PanelID: "p2"})
	assert.Equal(t, []string{"cluster", "namespace"}, names(got))
}

func TestTabVariableVisibleToEveryPanelOfItsTab(t *testing.T) {
	r := newFixtureRegistry(t, tabVar("namespace", "tab1"))
	h := NewHierarchy(fixtureDashboard())

	panels, _ := h.PanelsOf("tab1")
	for _, p := range panels {
		assert.Contains(t, names(r.ListVisibleTo(VariableContext{TabID: "tab1", PanelID: p})), "namespace", p)
	}
	assert.NotContains(t, names(r.ListVisibleTo(VariableContext{TabID: "tab2", PanelID: "p3"})), "namespace")
}

func TestPanelVariableInvisibleToSiblingPanel(t *testing.T) {
	r := newFixtureRegistry(t, panelVar("pod", "p1"))

	assert.Contains(t, names(r.ListVisibleTo(VariableContext{TabID: "tab1", PanelID: "p1"})), "pod")
	assert.NotContains(t, names(r.ListVisibleTo(VariableContext{TabID: "tab1", PanelID: "p2"})), "pod")
	assert.NotContains(t, names(r.ListVisibleTo(VariableContext{TabID: "tab1"})), "pod")
}

func TestRemove(t *testing.T) {
	r := newFixtureRegistry(t,
		globalVar("cluster"),
		dependsOn(tabVar("namespace", "tab1"), "cluster", "cluster"),
	)

	err := r.Remove("cluster")
	require.Error(t, err)
	assert.ErrorIs(t, err, &models.Error{Kind: models.KindScopeViolation, Rule: models.RuleHasDependents})

	require.NoError(t, r.Remove("namespace"))
	require.NoError(t, r.Remove("cluster"))
	assert.Empty(t, r.Variables())

	assert.ErrorIs(t, r.Remove("cluster"), models.ErrNotFound)

	// the name is free again
	_, err = r.Declare(globalVar("cluster"))
	assert.NoError(t, err)
}

func TestUpdateRenameFollowsDependents(t *testing.T) {
	r := newFixtureRegistry(t,
		globalVar("cluster"),
		dependsOn(tabVar("namespace", "tab1"), "cluster", "cluster"),
	)

	renamed := globalVar("region")
	require.NoError(t, r.Update("cluster", renamed))

	_, ok := r.Get("cluster")
	assert.False(t, ok)
	ns, _ := r.Get("namespace")
	assert.Equal(t, "region", ns.Upstream())
	assert.Equal(t, []string{"namespace"}, r.Downstream("region"))
}

func TestUpdateRejectsNarrowingBelowDependents(t *testing.T) {
	r := newFixtureRegistry(t,
		tabVar("namespace", "tab1", "tab2"),
		dependsOn(tabVar("service", "tab1", "tab2"), "namespace", "namespace"),
	)

	err := r.Update("namespace", tabVar("namespace", "tab1"))
	assert.ErrorIs(t, err, &models.Error{Kind: models.KindScopeViolation, Rule: models.RuleTabCoverage})

	ns, _ := r.Get("namespace")
	assert.Equal(t, []string{"tab1", "tab2"}, ns.AssignedTabs, "a rejected update keeps the old definition")
}

func TestUpdateRejectsCycle(t *testing.T) {
	r := newFixtureRegistry(t,
		globalVar("a"),
		dependsOn(globalVar("b"), "a", "f"),
	)

	err := r.Update("a", dependsOn(globalVar("a"), "b", "f"))
	assert.ErrorIs(t, err, models.ErrCyclicDependency)
}

func TestDownstreamAndEvaluationOrder(t *testing.T) {
	r := newFixtureRegistry(t,
		globalVar("cluster"),
		dependsOn(tabVar("namespace", "tab1"), "cluster", "cluster"),
		dependsOn(panelVar("pod", "p1"), "namespace", "namespace"),
		globalVar("env"),
	)

	assert.Equal(t, []string{"namespace", "pod"}, r.Downstream("cluster"))
	assert.Empty(t, r.Downstream("env"))

	pod, _ := r.Get("pod")
	ns, _ := r.Get("namespace")
	cluster, _ := r.Get("cluster")
	env, _ := r.Get("env")
	ordered := r.EvaluationOrder([]models.Variable{pod, env, ns, cluster})
	assert.Equal(t, []string{"env", "cluster", "namespace", "pod"}, names(ordered))
}

func TestLoadRegistry(t *testing.T) {
	h := NewHierarchy(fixtureDashboard())

	t.Run("dependent listed before upstream", func(t *testing.T) {
		r, err := LoadRegistry(h, []models.Variable{
			dependsOn(tabVar("namespace", "tab1"), "cluster", "cluster"),
			globalVar("cluster"),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"namespace"}, r.Downstream("cluster"))
	})

	t.Run("persisted cycle", func(t *testing.T) {
		_, err := LoadRegistry(h, []models.Variable{
			dependsOn(globalVar("a"), "b", "f"),
			dependsOn(globalVar("b"), "a", "f"),
		}, nil)
		assert.ErrorIs(t, err, models.ErrCyclicDependency)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := LoadRegistry(h, []models.Variable{globalVar("a"), globalVar("a")}, nil)
		assert.ErrorIs(t, err, models.ErrDuplicateName)
	})
}

func TestDetachLayout(t *testing.T) {
	r := newFixtureRegistry(t,
		tabVar("only2", "tab2"),
		tabVar("both", "tab1", "tab2"),
		panelVar("pod", "p3"),
		panelVar("shared", "p1", "p3"),
	)

	removed, err := r.DetachLayout([]string{"tab2"}, []string{"p3"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"only2", "pod"}, removed)

	both, _ := r.Get("both")
	assert.Equal(t, []string{"tab1"}, both.AssignedTabs)
	shared, _ := r.Get("shared")
	assert.Equal(t, []string{"p1"}, shared.AssignedPanels)
}

func TestDetachLayoutRemovesDependentsWithTheirUpstream(t *testing.T) {
	r := newFixtureRegistry(t,
		tabVar("ns", "tab1", "tab2"),
		dependsOn(tabVar("svc", "tab1"), "ns", "namespace"),
		tabVar("gone", "tab2"),
	)

	removed, err := r.DetachLayout([]string{"tab1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"svc"}, removed)
	ns, _ := r.Get("ns")
	assert.Equal(t, []string{"tab2"}, ns.AssignedTabs)
}

func TestDetachLayoutKeepsSurvivorsUpstream(t *testing.T) {
	r := newFixtureRegistry(t,
		tabVar("ns", "tab2"),
		dependsOn(panelVar("pod", "p3"), "ns", "namespace"),
		tabVar("keep", "tab1", "tab2"),
	)
	before := names(r.Variables())

	// pod keeps p3 but would lose its upstream
	_, err := r.DetachLayout([]string{"tab2"}, nil)
	assert.ErrorIs(t, err, &models.Error{Kind: models.KindScopeViolation, Rule: models.RuleHasDependents})
	assert.Equal(t, before, names(r.Variables()), "a failed detach changes nothing")
	keep, _ := r.Get("keep")
	assert.Equal(t, []string{"tab1", "tab2"}, keep.AssignedTabs)
}

func TestVerifyReportsEveryProblem(t *testing.T) {
	r := newFixtureRegistry(t,
		tabVar("ns", "tab1"),
		panelVar("pod", "p1"),
		dependsOn(panelVar("pod2", "p2"), "ns", "namespace"),
	)

	d := fixtureDashboard()
	// move p2 to tab2 and drop p1
	d.Tabs[1].Panels = append(d.Tabs[1].Panels, d.Tabs[0].Panels[1])
	d.Tabs[0].Panels = nil
	r.Rebind(NewHierarchy(d))

	err := r.Verify()
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, err, &models.Error{Kind: models.KindScopeViolation, Rule: models.RuleTabCoverage})
}
