package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrAborted is returned when the user declines to overwrite an existing invoice.
	ErrAborted = errors.New("upload aborted by user")

	// ErrIncompleteDraft is returned when a draft lacks a vendor name or an
	// invoice number.
	ErrIncompleteDraft = errors.New("draft is missing vendor name or invoice number")
)

// ApplyError wraps a failed write of a reconciliation plan with the step
// that failed.
type ApplyError struct {
	Op      string
	Step    string
	Err     error
	Details string
}

func (e *ApplyError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("reconcile: %s failed at %s: %s: %v", e.Op, e.Step, e.Details, e.Err)
	}
	return fmt.Sprintf("reconcile: %s failed at %s: %v", e.Op, e.Step, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
