package driver

import (
	"fmt"
)

// Error wraps a driver-reported failure, preserving which operation failed
// and the backend's underlying cause. The worker pool and scheduler log
// it; Unwrap exposes Cause to errors.Is and errors.As.
type Error struct {
	Op    string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("driver: %s: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap builds an *Error for the named operation, or returns nil if cause
// is nil.
func Wrap(op string, cause error) error {
	if cause == nil {
		return nil
	}

	return &Error{Op: op, Cause: cause}
}
