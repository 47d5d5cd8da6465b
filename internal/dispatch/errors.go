package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExecDisabled is returned by execute_code when raw execution is not enabled.
var ErrExecDisabled = errors.New("code execution is disabled (start the server with --allow-exec)")

// ValidationError indicates a missing or malformed command parameter.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Param == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid param '%s': %s", e.Param, e.Reason)
}

// IsValidation reports whether err is a parameter validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PartialFailureError reports a mutation that failed after some of its host
// steps were already applied.
type PartialFailureError struct {
	Applied []string
	Failed  string
	Err     error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure: applied [%s], failed at %s: %v",
		strings.Join(e.Applied, ", "), e.Failed, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

// IsPartialFailure reports whether err is a partial mutation failure.
func IsPartialFailure(err error) bool {
	var pf *PartialFailureError
	return errors.As(err, &pf)
}
