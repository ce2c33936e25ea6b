package indi

import (
	"errors"
	"fmt"
)

// Severity is the error-kind ladder from SPEC_FULL.md / spec.md §7,
// ordered by decreasing consequence.
type Severity int

const (
	SeverityFatal Severity = iota
	SeverityReject
	SeverityInvalidMember
	SeverityEmptyBatch
	SeverityUnknownCommand
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityReject:
		return "reject"
	case SeverityInvalidMember:
		return "invalid_member"
	case SeverityEmptyBatch:
		return "empty_batch"
	case SeverityUnknownCommand:
		return "unknown_command"
	default:
		return "unknown"
	}
}

// DispatchError is returned by Dispatcher.Dispatch. It carries the
// severity so callers (and metrics) can tell a hard reject from a soft
// "I don't know this tag" response. The value applicators do not use
// it; they return the sentinel errors below wrapped with %w.
type DispatchError struct {
	Severity Severity
	Message  string
}

func (e *DispatchError) Error() string {
	return e.Message
}

func newDispatchError(sev Severity, format string, args ...any) *DispatchError {
	return &DispatchError{Severity: sev, Message: fmt.Sprintf(format, args...)}
}

var (
	// ErrNotDefined names the case of a peer referencing an unregistered
	// (device, name). Dispatch reports that case as a SeverityReject
	// *DispatchError and does not wrap this value.
	ErrNotDefined = errors.New("indi: property is not defined")
	// ErrReadOnly names the case of a peer setting a ReadOnly property.
	// Dispatch reports that case as a SeverityReject *DispatchError and
	// does not wrap this value.
	ErrReadOnly = errors.New("indi: cannot set read-only property")
	// ErrMemberNotFound is returned by an applicator when a named member is absent from a vector.
	ErrMemberNotFound = errors.New("indi: member is not part of property")
	// ErrOutOfRange is returned by apply_numbers when a value violates [min, max].
	ErrOutOfRange = errors.New("indi: value out of range")
	// ErrSwitchRuleViolation is returned by apply_switches for a OneOfMany inconsistency.
	ErrSwitchRuleViolation = errors.New("indi: switch rule violation")
	// ErrIncompatibleVersion names the fatal case of the peer's protocol
	// version exceeding ours. Dispatch handles that case by calling
	// Dispatcher.Fatal and does not return this value.
	ErrIncompatibleVersion = errors.New("indi: incompatible protocol version")
	// ErrWriteFailed is wrapped into the error Writer.Emit returns when
	// the sink cannot be written or flushed.
	ErrWriteFailed = errors.New("indi: writer sink failed")
)
