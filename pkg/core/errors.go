package core

import "fmt"

// ToolErrorKind classifies a ToolError.
type ToolErrorKind string

const (
	ToolInvalidInput     ToolErrorKind = "invalid_input"
	ToolExecutionFailed  ToolErrorKind = "execution_failed"
	ToolNotFound         ToolErrorKind = "not_found"
)

// ConflictError reports lock or commit contention over a path.
type ConflictError struct {
	Path   string
	Holder TaskId
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: path %q held by task %s", e.Path, e.Holder)
}

// CyclicDependencyError rejects a batch whose dependency digraph has a cycle.
type CyclicDependencyError struct {
	Cycle []TaskId
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency across %d tasks", len(e.Cycle))
}

// ValidationSoftError is a recoverable exit-predicate failure; it counts as
// one retry attempt but does not escalate the routing tier.
type ValidationSoftError struct {
	Stage  string
	Reason string
}

func (e *ValidationSoftError) Error() string {
	return fmt.Sprintf("validation (soft) failed at %s: %s", e.Stage, e.Reason)
}

// ValidationHardError is an unrecoverable exit-predicate failure (e.g. a
// parse error signaled by tooling); it counts as an attempt and may
// escalate the routing tier.
type ValidationHardError struct {
	Stage  string
	Reason string
}

func (e *ValidationHardError) Error() string {
	return fmt.Sprintf("validation (hard) failed at %s: %s", e.Stage, e.Reason)
}

// ProviderError wraps an upstream model-provider failure.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RecursionLimitError is fatal to the task: MAX_RECURSION_DEPTH was exceeded.
type RecursionLimitError struct {
	Depth int
	Limit int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit exceeded: depth %d >= limit %d", e.Depth, e.Limit)
}

// ToolError surfaces into the script runtime as a thrown exception.
type ToolError struct {
	Kind ToolErrorKind
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Kind, e.Err)
	}
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Kind)
}

func (e *ToolError) Unwrap() error { return e.Err }

// CacheInvalidError triggers a silent rebuild; it never escapes the index
// component, but is a distinct type so that component can log it uniformly.
type CacheInvalidError struct {
	Reason string
}

func (e *CacheInvalidError) Error() string { return fmt.Sprintf("cache invalid: %s", e.Reason) }

// CancelledError propagates a cancellation signal up to a TaskFailed event.
type CancelledError struct {
	TaskId TaskId
}

func (e *CancelledError) Error() string { return fmt.Sprintf("task %s cancelled", e.TaskId) }

// IsSoft reports whether err should be treated as a soft (retryable)
// failure by the step executor's retry budget.
func IsSoft(err error) bool {
	switch err.(type) {
	case *ValidationSoftError, *ConflictError, *ProviderError:
		return true
	default:
		return false
	}
}

// IsHard reports whether err should be treated as an unrecoverable failure
// for the current attempt (still counts against the retry budget, but may
// escalate the routing tier).
func IsHard(err error) bool {
	switch err.(type) {
	case *ValidationHardError:
		return true
	default:
		return false
	}
}
