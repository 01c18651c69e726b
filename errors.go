package tuition

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("tuition: not found")
	ErrAlreadyExists = errors.New("tuition: already exists")
	ErrInvalidInput  = errors.New("tuition: invalid input")
	ErrUnauthorized  = errors.New("tuition: unauthorized")

	// Reference-data errors (records owned by the school administration system)
	ErrStudentNotFound     = errors.New("tuition: student not found")
	ErrEnrollmentNotFound  = errors.New("tuition: enrollment not found")
	ErrSourceNotConfigured = errors.New("tuition: no billing source configured")

	// Ledger errors
	ErrEntryNotFound       = errors.New("tuition: ledger entry not found")
	ErrApplicationNotFound = errors.New("tuition: ledger application not found")
	ErrEntryReversed       = errors.New("tuition: ledger entry is reversed")
	ErrInsufficientCredit  = errors.New("tuition: insufficient remaining credit")

	// Invoice errors
	ErrInvoiceNotFound  = errors.New("tuition: invoice not found")
	ErrInvoiceCancelled = errors.New("tuition: invoice is cancelled")
	ErrInvoicePaid      = errors.New("tuition: invoice already paid")
	ErrDuplicateNumber  = errors.New("tuition: invoice number already allocated")

	// Store errors
	ErrStoreNotReady   = errors.New("tuition: store not ready")
	ErrStoreClosed     = errors.New("tuition: store is closed")
	ErrVersionConflict = errors.New("tuition: concurrent modification detected")
	ErrMigrationFailed = errors.New("tuition: migration failed")
)

// ValidationError reports a rejected input field together with the
// human-readable message shown to back-office users.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tuition: validation failed for %s: %s", e.Field, e.Message)
}

// InvalidOperationError reports an operation that is well-formed but not
// allowed in the current state, such as recalculating a sent invoice.
// Reason is the exact user-facing message.
type InvalidOperationError struct {
	Reason string
}

func (e InvalidOperationError) Error() string {
	return "tuition: " + e.Reason
}

// invalidOp is shorthand used throughout the engine.
func invalidOp(reason string) error {
	return InvalidOperationError{Reason: reason}
}

// MultiError collects the per-item failures of a batch run.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "tuition: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("tuition: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrEnrollmentNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrApplicationNotFound) ||
		errors.Is(err, ErrInvoiceNotFound)
}

// IsValidation returns true if the error is a rejected-input error.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// IsInvalidOperation returns true if the error is a state-machine rejection.
func IsInvalidOperation(err error) bool {
	var oe InvalidOperationError
	return errors.As(err, &oe)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrVersionConflict)
}
