package services

import "github.com/emirpasic/gods/sets/hashset"

func newStringSet(values []string) *hashset.Set {
	s := hashset.New()
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// isSuperset reports whether a contains every item of b
func isSuperset(a, b *hashset.Set) bool {
	for _, item := range b.Values() {
		if !a.Contains(item) {
			return false
		}
	}
	return true
}

// without returns values minus the removed items, keeping order
func without(values []string, removed *hashset.Set) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !removed.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}
