package interfaces

//go:generate mockgen -destination=../../application/mocks/mock_gateways.go -package=mocks courtside/domain/interfaces AuthProvider,NotificationGateway

import (
	"context"

	"courtside/domain/entities"
	"courtside/domain/events"
)

// NotificationGateway receives completed state changes. Delivery is best effort and a
// failure never undoes the change that produced the event.
type NotificationGateway interface {
	Notify(ctx context.Context, event events.Event) error
}

// AuthProvider verifies a credential and returns the user id it belongs to
type AuthProvider interface {
	Verify(ctx context.Context, credential entities.Credential) (string, error)
}

// MetricsRecorder receives counters from the core services
type MetricsRecorder interface {
	RecordLedgerTransaction(ctx context.Context, reason entities.TransactionReason, amount int64)
	RecordCompensation(ctx context.Context, operation string, succeeded bool)
	RecordUnreconciled(ctx context.Context, operation string)
	RecordRosterConflict(ctx context.Context)
	RecordRegistration(ctx context.Context, classification entities.Classification)
}

// LedgerOptions are the per-call knobs of a ledger write
type LedgerOptions struct {
	SessionID       *string
	AdminCorrection bool
	Metadata        map[string]any
}

// LedgerOption configures a single ledger write
type LedgerOption func(*LedgerOptions)

// WithSession ties the entry to a session
func WithSession(sessionID string) LedgerOption {
	return func(o *LedgerOptions) {
		o.SessionID = &sessionID
	}
}

// WithAdminCorrection lifts the minimum balance floor on a debit
func WithAdminCorrection() LedgerOption {
	return func(o *LedgerOptions) {
		o.AdminCorrection = true
	}
}

// WithMetadata attaches a key/value to the entry
func WithMetadata(key string, value any) LedgerOption {
	return func(o *LedgerOptions) {
		if o.Metadata == nil {
			o.Metadata = make(map[string]any)
		}
		o.Metadata[key] = value
	}
}

// TransferResult contains both legs of a transfer
type TransferResult struct {
	Debit  *entities.Transaction
	Credit *entities.Transaction
}

// BalanceReport compares a cached balance against the transaction log
type BalanceReport struct {
	UserID        string
	CachedBalance int64
	LedgerSum     int64
}

// Drift is cached minus logged; zero when the ledger is consistent
func (r *BalanceReport) Drift() int64 {
	return r.CachedBalance - r.LedgerSum
}

// WalletLedger owns balances and the append-only transaction log
type WalletLedger interface {
	// Debit removes amount, failing with ErrInsufficientFunds if the result would fall
	// below the minimum balance. A zero amount returns nil, nil.
	Debit(ctx context.Context, userID string, amount int64, reason entities.TransactionReason, opts ...LedgerOption) (*entities.Transaction, error)

	// Credit adds amount. A zero amount returns nil, nil.
	Credit(ctx context.Context, userID string, amount int64, reason entities.TransactionReason, opts ...LedgerOption) (*entities.Transaction, error)

	// Transfer debits from and credits to. It is not atomic: if the credit fails the
	// debit is rolled back with a compensating credit.
	Transfer(ctx context.Context, fromUserID, toUserID string, amount int64, opts ...LedgerOption) (*TransferResult, error)

	// Verify returns the transaction if it was applied, nil if it was not
	Verify(ctx context.Context, transactionID string) (*entities.Transaction, error)

	// Reconcile compares a user's cached balance with the sum of their transactions
	Reconcile(ctx context.Context, userID string) (*BalanceReport, error)

	// History returns a user's most recent transactions
	History(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error)
}

// RosterRegistration is the outcome of adding a registrant
type RosterRegistration struct {
	Registrant     *entities.Registrant
	Position       int
	Classification entities.Classification
}

// RosterRemoval is the outcome of one cancellation batch
type RosterRemoval struct {
	Removed  []*entities.Registrant // With the positions they held before removal
	Moved    []*entities.Registrant // With their new positions
	Promoted []*entities.Registrant // Moved entries that left the waitlist
	Capacity int
}

// RosterManager owns the ordered registrant list of each session
type RosterManager interface {
	// Register appends reg to the roster
	Register(ctx context.Context, sessionID string, reg *entities.Registrant) (*RosterRegistration, error)

	// Cancel removes the registrant and, for a Self entry, the owner's guests, then
	// recompacts, all in one write
	Cancel(ctx context.Context, sessionID, registrantID string) (*RosterRemoval, error)

	// CancelMany removes exactly the given entries in one write
	CancelMany(ctx context.Context, sessionID string, registrantIDs []string) (*RosterRemoval, error)

	// Recompact renumbers the roster densely, returning how many entries moved
	Recompact(ctx context.Context, sessionID string) (int, error)

	// MarkPaid flags an entry as paid. ErrAlreadyPaid if it already was.
	MarkPaid(ctx context.Context, sessionID, registrantID string) error

	// Get returns the current roster
	Get(ctx context.Context, sessionID string) (*entities.Roster, error)
}

// SettlementCharge is one successful debit during publish
type SettlementCharge struct {
	Registrant  *entities.Registrant
	Transaction *entities.Transaction
}

// SettlementFailure is one registrant that could not be charged during publish
type SettlementFailure struct {
	Registrant *entities.Registrant
	Err        error
}

// SettlementReport is returned by publish
type SettlementReport struct {
	SessionID    string
	Charged      []SettlementCharge
	Unpaid       []SettlementFailure
	Unreconciled []*entities.UnreconciledError
	TotalCharged int64
}

// CloseResult is returned by close
type CloseResult struct {
	Archive     *entities.SessionArchive
	NextSession *entities.Session
}

// SessionLifecycle owns session state, settlement and archival
type SessionLifecycle interface {
	// Current returns the working session, creating one if needed
	Current(ctx context.Context) (*entities.Session, error)

	// Get returns a session by id
	Get(ctx context.Context, sessionID string) (*entities.Session, error)

	// Reset replaces the current session with a fresh Draft
	Reset(ctx context.Context) (*entities.Session, error)

	// Configure edits a Draft or Published session; the fee only while Draft
	Configure(ctx context.Context, sessionID string, settings entities.SessionSettings) (*entities.Session, error)

	// RecordEquipment adds consumed equipment units
	RecordEquipment(ctx context.Context, sessionID string, units int) (*entities.Session, error)

	// Publish settles active registrants and opens the session
	Publish(ctx context.Context, sessionID string) (*SettlementReport, error)

	// Close archives the session and makes a fresh Draft current
	Close(ctx context.Context, sessionID string) (*CloseResult, error)

	// ArchiveSession writes the archive of a closed session if it is missing
	ArchiveSession(ctx context.Context, sessionID string) (*entities.SessionArchive, error)

	SetMaintenance(ctx context.Context, enabled bool) error
	Maintenance(ctx context.Context) (bool, error)

	// Archives lists archived sessions, most recent first
	Archives(ctx context.Context, limit int) ([]*entities.SessionArchive, error)
}

// RegistrationResult is returned by every register operation
type RegistrationResult struct {
	Registrant     *entities.Registrant
	Position       int
	Classification entities.Classification
	Charge         *entities.Transaction // Nil when nothing was charged
}

// CancellationResult is returned by every cancel operation
type CancellationResult struct {
	Removed       []*entities.Registrant
	Refunds       []*entities.Transaction
	TotalRefunded int64

	// Settlement charges waitlisted entries the removal promoted in a published
	// session; nil when nobody unpaid was promoted
	Settlement *SettlementReport
}

// RegistrationCoordinator runs the player and admin use cases across ledger and roster
type RegistrationCoordinator interface {
	RegisterSelf(ctx context.Context, sessionID, userID string) (*RegistrationResult, error)
	RegisterGuest(ctx context.Context, sessionID, hostUserID, guestName string) (*RegistrationResult, error)
	CancelSelf(ctx context.Context, sessionID, userID string) (*CancellationResult, error)
	CancelGuest(ctx context.Context, sessionID, hostUserID, guestName string) (*CancellationResult, error)
	GiftTransfer(ctx context.Context, req entities.GiftRequest) (*TransferResult, error)

	// Admin operations ignore maintenance and the lock window
	AdminAddRegistrant(ctx context.Context, req entities.AddRegistrantRequest) (*RegistrationResult, error)
	AdminRemoveRegistrant(ctx context.Context, req entities.RemoveRegistrantRequest) (*CancellationResult, error)
	TopUp(ctx context.Context, req entities.TopUpRequest) (*entities.Transaction, error)
	AdjustBalance(ctx context.Context, req entities.AdjustmentRequest) (*entities.Transaction, error)
}
