package reconcile

import (
	"errors"
	"fmt"
)

// ConflictError is a ReconcileConflict: the tracking branch moved between
// checkout and push. It is never retried.
type ConflictError struct {
	Branch string
	Err    error
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("reconcile conflict on %s: %v", e.Branch, e.Err)
}

// Unwrap returns the push error.
func (e *ConflictError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is or wraps a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// rejection is implemented by push errors that signal a refused push.
type rejection interface {
	Rejected() bool
}

func isRejected(err error) bool {
	var r rejection
	return errors.As(err, &r) && r.Rejected()
}
