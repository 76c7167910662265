package entities

import (
	"errors"
	"fmt"
)

// Precondition and business-rule failures. Callers match these with errors.Is.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is deactivated")
	ErrAlreadyRegistered  = errors.New("already registered for this session")
	ErrNotRegistered      = errors.New("not registered for this session")
	ErrSessionNotOpen     = errors.New("session is not open for registration")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionClosed      = errors.New("session is already closed")
	ErrInvalidTransition  = errors.New("invalid session state transition")
	ErrDuplicateName      = errors.New("display name already on the roster")
	ErrRegistrantNotFound = errors.New("registrant not found")
	ErrAlreadyPaid        = errors.New("registrant is already marked paid")
	ErrTransferNotAllowed = errors.New("transfer not allowed")
	ErrPermissionDenied   = errors.New("permission denied")
)

// Store-level failures.
var (
	// ErrVersionConflict is returned by a conditional write whose expected version no
	// longer matches the stored one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrRetryBudgetExhausted means a conditional write kept conflicting until the
	// configured attempt limit was reached.
	ErrRetryBudgetExhausted = errors.New("conditional write retry budget exhausted")

	ErrArchiveExists = errors.New("archive already exists for key")
)

// Coordinator failures.
var (
	// ErrRosterWriteFailed reports that the roster mutation following a debit failed and
	// the debit was compensated.
	ErrRosterWriteFailed = errors.New("roster write failed")

	// ErrOutcomeUnknown reports that a ledger write may or may not have been applied.
	ErrOutcomeUnknown = errors.New("ledger write outcome unknown")

	// ErrUnreconciled reports a ledger/roster discrepancy that needs manual repair.
	ErrUnreconciled = errors.New("unreconciled ledger state")
)

// UnreconciledError carries what an operator needs to repair a discrepancy by hand.
type UnreconciledError struct {
	Operation     string
	UserID        string
	Amount        int64
	TransactionID string
	SessionID     string
	Cause         error
}

func (e *UnreconciledError) Error() string {
	return fmt.Sprintf("unreconciled %s: user=%s amount=%d tx=%s session=%s: %v",
		e.Operation, e.UserID, e.Amount, e.TransactionID, e.SessionID, e.Cause)
}

func (e *UnreconciledError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrUnreconciled) match regardless of the cause.
func (e *UnreconciledError) Is(target error) bool {
	return target == ErrUnreconciled
}

// OutcomeUnknownError wraps a ledger write failure where the store may have committed
// the entry before the error surfaced.
type OutcomeUnknownError struct {
	TransactionID string
	UserID        string
	Amount        int64
	Cause         error
}

func (e *OutcomeUnknownError) Error() string {
	return fmt.Sprintf("outcome of transaction %s (user=%s amount=%d) unknown: %v",
		e.TransactionID, e.UserID, e.Amount, e.Cause)
}

func (e *OutcomeUnknownError) Unwrap() error {
	return e.Cause
}

func (e *OutcomeUnknownError) Is(target error) bool {
	return target == ErrOutcomeUnknown
}
