package model

import "fmt"

// ValidationError reports a malformed or incomplete ColumnSpec. It is raised
// before any statement is generated and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ConnectivityError reports that no session with the engine could be
// established or kept.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: connection failed: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ExecutionError reports a statement rejected by the engine. Op names the
// logical operation the statement belonged to.
type ExecutionError struct {
	Op        string
	Statement string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
