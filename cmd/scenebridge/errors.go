package main

import (
	"fmt"

	"github.com/d2verb/scenebridge/internal/protocol"
)

// Exit codes for CLI commands.
const (
	exitSuccess          = 0
	exitError            = 1
	exitDaemonNotRunning = 2
	exitCommandFailed    = 3
	exitNotFound         = 4
	exitExecDisabled     = 5
)

// ExitError represents an error that should cause the process to exit with a specific code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

func errDaemonNotRunning(addr string) *ExitError {
	return &ExitError{
		Code:    exitDaemonNotRunning,
		Message: fmt.Sprintf("Server is not running at %s.\nRun: scenebridge serve", addr),
	}
}

// errCommandFailed maps an error response to an exit error. not_found and
// exec_disabled get their own codes so scripts can branch on them.
func errCommandFailed(resp *protocol.Response) *ExitError {
	code := exitCommandFailed
	switch resp.Code {
	case protocol.ErrCodeNotFound:
		code = exitNotFound
	case protocol.ErrCodeExecDisabled:
		code = exitExecDisabled
	}
	msg := resp.Message
	if resp.Code != "" {
		msg = fmt.Sprintf("%s (%s)", resp.Message, resp.Code)
	}
	return &ExitError{Code: code, Message: "Error: " + msg}
}
