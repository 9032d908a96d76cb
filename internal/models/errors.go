package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies validation failures surfaced to the settings UI
type ErrorKind string

const (
	KindDuplicateName     ErrorKind = "duplicate_name"
	KindInvalidScope      ErrorKind = "invalid_scope"
	KindScopeViolation    ErrorKind = "scope_violation"
	KindCyclicDependency  ErrorKind = "cyclic_dependency"
	KindNotFound          ErrorKind = "not_found"
	KindMissingRange      ErrorKind = "missing_range"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindInvalidRange      ErrorKind = "invalid_range"
	KindInvalidName       ErrorKind = "invalid_name"
)

// ScopeRule names the visibility rule a dependency broke
type ScopeRule string

const (
	RuleGlobalUpstreamOnly ScopeRule = "global-depends-on-global-only"
	RulePanelUpstream      ScopeRule = "panel-variable-not-dependable"
	RuleTabCoverage        ScopeRule = "tab-upstream-must-cover-tabs"
	RuleHasDependents      ScopeRule = "has-dependents"
)

// Error is a local, non-retryable validation failure
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Rule    ScopeRule `json:"rule,omitempty"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Rule, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches on Kind so errors.Is(err, models.ErrNotFound) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Rule == "" || t.Rule == e.Rule)
}

// Sentinels for errors.Is
var (
	ErrDuplicateName     = &Error{Kind: KindDuplicateName}
	ErrInvalidScope      = &Error{Kind: KindInvalidScope}
	ErrScopeViolation    = &Error{Kind: KindScopeViolation}
	ErrCyclicDependency  = &Error{Kind: KindCyclicDependency}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrMissingRange      = &Error{Kind: KindMissingRange}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrInvalidRange      = &Error{Kind: KindInvalidRange}
	ErrInvalidName       = &Error{Kind: KindInvalidName}
)

func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewScopeViolation(rule ScopeRule, format string, args ...interface{}) *Error {
	return &Error{Kind: KindScopeViolation, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of a validation error, or "" for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
