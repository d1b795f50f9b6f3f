package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is returned for a change that is not finite, is
	// negative, or exceeds MaxChange.
	ErrInvalidAmount = errors.New("invalid spend amount")

	// ErrStoreUnavailable is returned when the persistence backend cannot be reached.
	ErrStoreUnavailable = errors.New("spend store unavailable")
)

// LedgerError wraps a ledger failure with the operation and, for rejected
// changes, the offending amount.
type LedgerError struct {
	Op      string
	Err     error
	Details string
	Amount  float64
}

func (e *LedgerError) Error() string {
	switch {
	case e.Details != "":
		return fmt.Sprintf("ledger: %s failed: %s: %v", e.Op, e.Details, e.Err)
	case errors.Is(e.Err, ErrInvalidAmount):
		return fmt.Sprintf("ledger: %s failed: %v: %g", e.Op, e.Err, e.Amount)
	default:
		return fmt.Sprintf("ledger: %s failed: %v", e.Op, e.Err)
	}
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// WrapLedgerError wraps err with the operation and details. A nil err returns nil.
func WrapLedgerError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	return &LedgerError{Op: op, Err: err, Details: details}
}
