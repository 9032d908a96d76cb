package models

// Scope is the visibility tier of a variable
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeTab    Scope = "tabs"
	ScopePanel  Scope = "panels"
)

// Source is the value-population strategy, opaque to scoping
type Source string

const (
	SourceQueryValues Source = "query_values"
	SourceConstant    Source = "constant"
	SourceTextBox     Source = "textbox"
	SourceCustom      Source = "custom"
)

// Dependency binds a variable's filter to an upstream variable
type Dependency struct {
	Variable string `json:"variable" bson:"variable"`
	Field    string `json:"field" bson:"field"`
}

// Variable is a named dashboard parameter
type Variable struct {
	Name           string      `json:"name" bson:"name"`
	Scope          Scope       `json:"scope" bson:"scope"`
	AssignedTabs   []string    `json:"assigned_tabs,omitempty" bson:"assigned_tabs,omitempty"`
	AssignedPanels []string    `json:"assigned_panels,omitempty" bson:"assigned_panels,omitempty"`
	Source         Source      `json:"source" bson:"source"`
	DependsOn      *Dependency `json:"depends_on,omitempty" bson:"depends_on,omitempty"`
	MultiSelect    bool        `json:"multi_select" bson:"multi_select"`
	MaxRecords     int         `json:"max_records,omitempty" bson:"max_records,omitempty"`
	Hidden         bool        `json:"hidden" bson:"hidden"`
}

// Upstream returns the name this variable depends on, or ""
func (v *Variable) Upstream() string {
	if v.DependsOn == nil {
		return ""
	}
	return v.DependsOn.Variable
}

// Clone deep-copies the assignment lists and dependency
func (v Variable) Clone() Variable {
	v.AssignedTabs = append([]string(nil), v.AssignedTabs...)
	v.AssignedPanels = append([]string(nil), v.AssignedPanels...)
	if v.DependsOn != nil {
		d := *v.DependsOn
		v.DependsOn = &d
	}
	return v
}
