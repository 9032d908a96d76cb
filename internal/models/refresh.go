package models

import "time"

// RefreshCause says which committed value changed
type RefreshCause string

const (
	CauseGlobalTime RefreshCause = "global_time"
	CausePanelTime  RefreshCause = "panel_time"
	CauseVariable   RefreshCause = "variable"
	CauseSave       RefreshCause = "save"
)

// RefreshEvent asks every listed panel to re-run its query exactly once
type RefreshEvent struct {
	DashboardID string       `json:"dashboard_id"`
	Cause       RefreshCause `json:"cause"`
	Source      string       `json:"source,omitempty"` // panel id or variable name
	PanelIDs    []string     `json:"panel_ids"`
	Timestamp   time.Time    `json:"timestamp"`
}
