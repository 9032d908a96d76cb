package services

import (
	"sync"

	"scopeboard/internal/models"
)

// fixtureDashboard has tab1 {p1, p2} and tab2 {p3}. p1 uses an individual
// 1h range, p2 has panel time disabled, p3 has no time config at all.
func fixtureDashboard() *models.Dashboard {
	hour := models.Relative(1, models.UnitHour)
	return &models.Dashboard{
		ID:         "dash",
		Title:      "Fixture",
		GlobalTime: models.Relative(15, models.UnitMinute),
		Tabs: []models.Tab{
			{ID: "tab1", Title: "Tab1", Panels: []models.Panel{
				{ID: "p1", Title: "Latency", Time: &models.PanelTimeConfig{Enabled: true, Mode: models.ModeIndividual, Range: &hour}},
				{ID: "p2", Title: "Errors", Time: &models.PanelTimeConfig{Enabled: false}},
			}},
			{ID: "tab2", Title: "Tab2", Panels: []models.Panel{
				{ID: "p3", Title: "Throughput"},
			}},
		},
	}
}

func globalVar(name string) models.Variable {
	return models.Variable{Name: name, Scope: models.ScopeGlobal, Source: models.SourceQueryValues}
}

func tabVar(name string, tabs ...string) models.Variable {
	return models.Variable{Name: name, Scope: models.ScopeTab, AssignedTabs: tabs, Source: models.SourceQueryValues}
}

func panelVar(name string, panels ...string) models.Variable {
	return models.Variable{Name: name, Scope: models.ScopePanel, AssignedPanels: panels, Source: models.SourceQueryValues}
}

func dependsOn(v models.Variable, upstream, field string) models.Variable {
	v.DependsOn = &models.Dependency{Variable: upstream, Field: field}
	return v
}

func names(vars []models.Variable) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.Name)
	}
	return out
}

// recordingNotifier captures refresh events in order
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.RefreshEvent
}

func (n *recordingNotifier) NotifyRefresh(event models.RefreshEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []models.RefreshEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.RefreshEvent(nil), n.events...)
}
