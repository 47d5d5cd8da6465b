package frame

import (
	"errors"
	"fmt"
)

// ValidationError indicates the capture request or pixel buffer is malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a frame validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// EncodingError indicates the frame could not be produced: the format is
// unsupported, the viewport could not be read, or the encoder failed.
type EncodingError struct {
	Format Format
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("encode frame: %v", e.Err)
	}
	return fmt.Sprintf("encode %s frame: %v", e.Format, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// IsEncoding reports whether err is a frame encoding error.
func IsEncoding(err error) bool {
	var ee *EncodingError
	return errors.As(err, &ee)
}
