package services

import (
	"scopeboard/internal/models"
)

// Hierarchy answers containment queries over one dashboard snapshot
type Hierarchy struct {
	tabOrder  []string
	tabPanels map[string][]string
	panelTab  map[string]string
}

// NewHierarchy indexes the tabs and panels of a dashboard
func NewHierarchy(d *models.Dashboard) *Hierarchy {
	h := &Hierarchy{
		tabPanels: make(map[string][]string, len(d.Tabs)),
		panelTab:  make(map[string]string),
	}
	for _, tab := range d.Tabs {
		h.tabOrder = append(h.tabOrder, tab.ID)
		panels := make([]string, 0, len(tab.Panels))
		for _, p := range tab.Panels {
			panels = append(panels, p.ID)
			h.panelTab[p.ID] = tab.ID
		}
		h.tabPanels[tab.ID] = panels
	}
	return h
}

// TabOf returns the tab that owns a panel
func (h *Hierarchy) TabOf(panelID string) (string, error) {
	tabID, ok := h.panelTab[panelID]
	if !ok {
		return "", models.NewError(models.KindNotFound, "panel %q not found", panelID)
	}
	return tabID, nil
}

// PanelsOf returns the panels of a tab in layout order
func (h *Hierarchy) PanelsOf(tabID string) ([]string, error) {
	panels, ok := h.tabPanels[tabID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "tab %q not found", tabID)
	}
	return append([]string(nil), panels...), nil
}

func (h *Hierarchy) HasTab(tabID string) bool {
	_, ok := h.tabPanels[tabID]
	return ok
}

func (h *Hierarchy) HasPanel(panelID string) bool {
	_, ok := h.panelTab[panelID]
	return ok
}

// Tabs lists tab ids in layout order
func (h *Hierarchy) Tabs() []string {
	return append([]string(nil), h.tabOrder...)
}

// Panels lists every panel id, tab by tab
func (h *Hierarchy) Panels() []string {
	var out []string
	for _, tabID := range h.tabOrder {
		out = append(out, h.tabPanels[tabID]...)
	}
	return out
}
