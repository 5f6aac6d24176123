// Package errkind defines the kind-tagged error taxonomy shared across the
// builder6 core. Every failure that crosses a component boundary carries a
// Kind so callers can branch on failure class without string matching.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies an error for cross-component handling.
type Kind string

const (
	ContainerLimitReached      Kind = "ContainerLimitReached"
	ContainerNotFound          Kind = "ContainerNotFound"
	ContainerCreationFailed    Kind = "ContainerCreationFailed"
	ContainerExecutionFailed   Kind = "ContainerExecutionFailed"
	ContainerDestructionFailed Kind = "ContainerDestructionFailed"
	PromptTooLarge             Kind = "PromptTooLarge"
	ModelUpstreamTransient     Kind = "ModelUpstreamTransient"
	ModelUpstreamFatal         Kind = "ModelUpstreamFatal"
	ToolUnknown                Kind = "ToolUnknown"
	ToolArgumentInvalid        Kind = "ToolArgumentInvalid"
	SessionNotFound            Kind = "SessionNotFound"
	SessionStateInvalid        Kind = "SessionStateInvalid"
	TaskNotFound               Kind = "TaskNotFound"
	PlanParseFailed            Kind = "PlanParseFailed"
	Internal                   Kind = "Internal"
)

// Error is a kind-tagged error with an optional originating cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a kind-tagged error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an existing error with a kind and contextual message.
// It returns nil when cause is nil.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err. Untagged errors report Internal;
// a nil error reports the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind == kind
	}
	return false
}
