package dataservice

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by getters and mutations before Init succeeds.
	ErrNotInitialized = errors.New("data service not initialized")

	// ErrInvoiceNotFound is returned when a mutation targets an invoice that is
	// not in the loaded list.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrEmptyPatch is returned by EditInvoice when the patch changes nothing.
	ErrEmptyPatch = errors.New("invoice patch is empty")
)

// ServiceError wraps a failed facade operation.
type ServiceError struct {
	Op        string
	Err       error
	Details   string
	InvoiceID string
}

func (e *ServiceError) Error() string {
	switch {
	case e.Details != "":
		return fmt.Sprintf("dataservice: %s failed: %s: %v", e.Op, e.Details, e.Err)
	case e.InvoiceID != "":
		return fmt.Sprintf("dataservice: %s failed (invoice: %s): %v", e.Op, e.InvoiceID, e.Err)
	default:
		return fmt.Sprintf("dataservice: %s failed: %v", e.Op, e.Err)
	}
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WrapServiceError wraps err with the operation and details. A nil err returns nil.
func WrapServiceError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Op: op, Err: err, Details: details}
}
