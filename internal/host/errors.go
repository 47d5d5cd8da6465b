package host

import (
	"errors"
	"fmt"
)

// ErrExecutorStopped is returned when a task is submitted after Stop.
var ErrExecutorStopped = errors.New("host executor stopped")

// ErrUnsupported is returned when the host lacks an optional capability.
var ErrUnsupported = errors.New("operation not supported by host")

// ExecutionError indicates the host raised a fault while running a task,
// including errors and panics from arbitrary executed code.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("host %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError reports whether err is a host execution fault.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// NotFoundError indicates a named object or material does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
}

// IsNotFound reports whether err indicates a missing object or material.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
