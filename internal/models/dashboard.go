package models

// TimeMode selects whether a panel follows the dashboard range
type TimeMode string

const (
	ModeGlobal     TimeMode = "global"
	ModeIndividual TimeMode = "individual"
)

// PanelTimeConfig is the enabled/mode/range triple of a panel.
// Range is only meaningful when Mode is Individual.
type PanelTimeConfig struct {
	Enabled bool       `json:"panel_time_enabled" bson:"panel_time_enabled"`
	Mode    TimeMode   `json:"panel_time_mode,omitempty" bson:"panel_time_mode,omitempty"`
	Range   *TimeRange `json:"panel_time_range,omitempty" bson:"panel_time_range,omitempty"`
}

// Panel is a visual query unit inside exactly one tab
type Panel struct {
	ID    string           `json:"id" bson:"id"`
	Title string           `json:"title" bson:"title"`
	Time  *PanelTimeConfig `json:"time,omitempty" bson:"time,omitempty"`
}

// Tab groups panels
type Tab struct {
	ID     string  `json:"id" bson:"id"`
	Title  string  `json:"title" bson:"title"`
	Panels []Panel `json:"panels" bson:"panels"`
}

// Dashboard is the committed document handed over by persistence
type Dashboard struct {
	ID         string     `json:"id" bson:"_id"`
	Title      string     `json:"title" bson:"title"`
	Tabs       []Tab      `json:"tabs" bson:"tabs"`
	GlobalTime TimeRange  `json:"global_time" bson:"global_time"`
	Variables  []Variable `json:"variables" bson:"variables"`
}

// DefaultTabID is used when a dashboard arrives without tabs
const DefaultTabID = "default"

// Clone returns a deep copy so edit sessions never alias committed state
func (d *Dashboard) Clone() *Dashboard {
	out := *d
	out.Tabs = make([]Tab, len(d.Tabs))
	for i, tab := range d.Tabs {
		out.Tabs[i] = tab
		out.Tabs[i].Panels = make([]Panel, len(tab.Panels))
		for j, p := range tab.Panels {
			out.Tabs[i].Panels[j] = p
			if p.Time != nil {
				cfg := p.Time.Clone()
				out.Tabs[i].Panels[j].Time = &cfg
			}
		}
	}
	out.Variables = make([]Variable, len(d.Variables))
	for i, v := range d.Variables {
		out.Variables[i] = v.Clone()
	}
	return &out
}

// Clone copies the config including its range pointer
func (c PanelTimeConfig) Clone() PanelTimeConfig {
	if c.Range != nil {
		r := *c.Range
		c.Range = &r
	}
	return c
}
