package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

func TestErrorIs(t *testing.T) {
	err := NewScopeViolation(RuleTabCoverage, "upstream %q misses tab %q", "ns", "tab2")

	assert.ErrorIs(t, err, ErrScopeViolation)
	assert.ErrorIs(t, err, &Error{Kind: KindScopeViolation, Rule: RuleTabCoverage})
	assert.NotErrorIs(t, err, &Error{Kind: KindScopeViolation, Rule: RulePanelUpstream})
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("declare: %w", err)
	assert.ErrorIs(t, wrapped, ErrScopeViolation)
	assert.Equal(t, KindScopeViolation, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "not_found: tab \"x\" not found", NewError(KindNotFound, "tab %q not found", "x").Error())
	assert.Equal(t, "scope_violation (has-dependents): in use", NewScopeViolation(RuleHasDependents, "in use").Error())
}

func TestErrorIsThroughMultierr(t *testing.T) {
	err := multierr.Combine(
		NewError(KindNotFound, "panel gone"),
		NewError(KindMissingRange, "p1 has no range"),
	)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrMissingRange)
	assert.Len(t, multierr.Errors(err), 2)
}
