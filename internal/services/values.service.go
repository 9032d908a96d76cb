package services

import (
	"scopeboard/internal/models"
)

// ValueStore holds the committed current values of variables
type ValueStore struct {
	values map[string][]string
}

func NewValueStore() *ValueStore {
	return &ValueStore{values: make(map[string][]string)}
}

// Get returns a copy of the current values of name
func (vs *ValueStore) Get(name string) []string {
	return append([]string(nil), vs.values[name]...)
}

// Set replaces the values of a declared variable and clears every
// transitive dependent, which must be re-populated against the new value.
// It returns the names of the cleared dependents.
func (vs *ValueStore) Set(reg *Registry, name string, values []string) ([]string, error) {
	v, ok := reg.Get(name)
	if !ok {
		return nil, models.NewError(models.KindNotFound, "variable %q not found", name)
	}
	if !v.MultiSelect && len(values) > 1 {
		return nil, models.NewError(models.KindInvalidTransition, "variable %q accepts a single value, got %d", name, len(values))
	}
	if v.MaxRecords > 0 && len(values) > v.MaxRecords {
		return nil, models.NewError(models.KindInvalidTransition, "variable %q holds at most %d values, got %d", name, v.MaxRecords, len(values))
	}

	vs.values[name] = append([]string(nil), values...)
	var cleared []string
	for _, dep := range reg.Downstream(name) {
		if len(vs.values[dep]) > 0 {
			cleared = append(cleared, dep)
		}
		delete(vs.values, dep)
	}
	return cleared, nil
}

// Prune forgets values of variables that are no longer declared
func (vs *ValueStore) Prune(reg *Registry) {
	for name := range vs.values {
		if _, ok := reg.Get(name); !ok {
			delete(vs.values, name)
		}
	}
}
