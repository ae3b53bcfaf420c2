package tool

import "fmt"

// NotFoundError reports a node referencing a tool name absent from the
// registry.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}

// ExecError wraps a failure raised by a tool during execution, including
// input-schema mismatches and recovered panics.
type ExecError struct {
	Tool string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
