package engine

import (
	"fmt"
	"time"
)

// UsageError reports caller-supplied arguments that violate an operation's
// preconditions (for example a negative repeat count). Unlike binding and
// invocation failures it is not converted into an error result: it
// indicates a construction-time mistake and propagates out of Execute.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// NewUsageError builds a UsageError with a formatted message.
func NewUsageError(format string, args ...any) *UsageError {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// InvocationError wraps an error raised by an operation handler during
// execution. It is recorded on the failing node and reported to error
// observers; it never unwinds out of Execute.
type InvocationError struct {
	NodeID string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("node '%s': operation failed: %v", e.NodeID, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// NodeError is the queryable record of a node failure.
type NodeError struct {
	Message   string
	NodeID    string
	NodeName  string
	Timestamp time.Time
}

// asResult renders the failure as the structured error result stored in
// place of a normal output, so downstream nodes can branch on error.*
// fields instead of unwinding.
func (e *NodeError) asResult() map[string]any {
	return map[string]any{
		"error": map[string]any{
			"message":   e.Message,
			"nodeId":    e.NodeID,
			"nodeName":  e.NodeName,
			"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}
}
