package preview

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when no session is active on a port.
var ErrSessionNotFound = errors.New("no live preview on that port")

// ErrManagerClosed is returned by Start after Close.
var ErrManagerClosed = errors.New("preview manager closed")

// BindError indicates a session could not take its port.
type BindError struct {
	Port int
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("cannot bind preview port %d: %v", e.Port, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// IsBind reports whether err is a preview bind failure.
func IsBind(err error) bool {
	var be *BindError
	return errors.As(err, &be)
}
