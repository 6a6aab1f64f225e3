// Package kernelerr defines the kernel's error taxonomy.
//
// Stages and the Controller never use exceptions for business outcomes
// (spec.md, Design Notes): a failed stage returns a StageResult with an
// explicit status. These types exist for the handful of faults that
// really are unexpected or terminal — a missing required field, a
// broken store, a blown budget — so the Controller can tell them apart
// without string-matching error text.
package kernelerr

import "errors"

// Kind classifies a kernel-level error.
type Kind string

const (
	// InputValidation: an executor's required input fields are missing.
	// Non-retryable.
	InputValidation Kind = "input_validation"
	// OutputValidation: a produced artifact failed output checks or a
	// transition contract. Non-retryable at the executor level.
	OutputValidation Kind = "output_validation"
	// ExecutorError: an uncaught exception during stage execution.
	// Retryable up to the stage's retry budget.
	ExecutorError Kind = "executor_error"
	// EscalationRequested is not a failure; it is a cooperative signal
	// that a stage needs human input. Carried as a Kind so it can be
	// logged alongside real errors, never surfaced as a failed run.
	EscalationRequested Kind = "escalation_requested"
	// CostOrTimeExceeded: a pipeline-level budget cap was hit.
	// Non-retryable, terminal.
	CostOrTimeExceeded Kind = "cost_or_time_exceeded"
	// NotApplicable: a control operation was issued against a pipeline
	// in an incompatible status. Callers get `false`, not this error;
	// it exists for logging and internal plumbing.
	NotApplicable Kind = "not_applicable"
	// PersistenceError: a state or artifact store failure. Fatal for
	// the current run.
	PersistenceError Kind = "persistence_error"
)

// Error is a kernel error carrying a Kind alongside the usual message
// and wrapped cause, so callers can branch with errors.As/Is without
// parsing strings.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg += " [" + e.Stage + "]"
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a typed Error.
func New(kind Kind, stage, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message}
}

// Wrap constructs a typed Error around an existing cause.
func Wrap(kind Kind, stage, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

// Is reports whether err is a kernel Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the kernel error's Kind permits retrying
// the stage attempt that produced it.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ExecutorError
	}
	// Unclassified errors (e.g. from the LLM provider or a tool) are
	// treated as ExecutorError-equivalent: retryable.
	return true
}
