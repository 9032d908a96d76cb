package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scopeboard/internal/models"
)

func TestValueStoreSet(t *testing.T) {
	multi := tabVar("namespace", "tab1")
	multi.MultiSelect = true
	multi.MaxRecords = 2
	r := newFixtureRegistry(t, globalVar("cluster"), multi)
	vs := NewValueStore()

	_, err := vs.Set(r, "cluster", []string{"a", "b"})
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "single-select takes one value")

	_, err = vs.Set(r, "namespace", []string{"x", "y", "z"})
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "over max records")

	_, err = vs.Set(r, "missing", []string{"x"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = vs.Set(r, "namespace", []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, vs.Get("namespace"))
	assert.Empty(t, vs.Get("cluster"))
}

func TestValueStoreSetClearsDependents(t *testing.T) {
	r := newFixtureRegistry(t,
		globalVar("cluster"),
		dependsOn(tabVar("namespace", "tab1"), "cluster", "cluster"),
		dependsOn(panelVar("pod", "p1"), "namespace", "namespace"),
		dependsOn(panelVar("container", "p1"), "namespace", "namespace"),
	)
	vs := NewValueStore()
	for name, v := range map[string]string{"cluster": "c1", "namespace": "ns1", "pod": "pod1"} {
		_, err := vs.Set(r, name, []string{v})
		require.NoError(t, err)
	}

	cleared, err := vs.Set(r, "cluster", []string{"c2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"namespace", "pod"}, cleared, "container held no value")
	assert.Empty(t, vs.Get("namespace"))
	assert.Empty(t, vs.Get("pod"))
	assert.Equal(t, []string{"c2"}, vs.Get("cluster"))
}

func TestValueStoreGetReturnsCopy(t *testing.T) {
	r := newFixtureRegistry(t, globalVar("cluster"))
	vs := NewValueStore()
	_, err := vs.Set(r, "cluster", []string{"c1"})
	require.NoError(t, err)

	got := vs.Get("cluster")
	got[0] = "mutated"
	assert.Equal(t, []string{"c1"}, vs.Get("cluster"))
}

func TestValueStorePrune(t *testing.T) {
	r := newFixtureRegistry(t, globalVar("cluster"), globalVar("env"))
	vs := NewValueStore()
	_, _ = vs.Set(r, "cluster", []string{"c1"})
	_, _ = vs.Set(r, "env", []string{"prod"})

	require.NoError(t, r.Remove("env"))
	vs.Prune(r)

	assert.Empty(t, vs.Get("env"))
	assert.Equal(t, []string{"c1"}, vs.Get("cluster"))
}
