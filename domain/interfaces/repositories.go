package interfaces

import (
	"context"
	"time"

	"courtside/domain/entities"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user, returning nil if none exists
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// Create stores a new user. The initial balance must be zero; money only enters
	// through the ledger.
	Create(ctx context.Context, user *entities.User) error

	// GetAll returns all users
	GetAll(ctx context.Context) ([]*entities.User, error)

	// GetBelowBalance returns active users whose balance is below threshold
	GetBelowBalance(ctx context.Context, threshold int64) ([]*entities.User, error)

	// SetActive activates or deactivates a user
	SetActive(ctx context.Context, id string, active bool) error
}

// WalletRepository is the per-wallet atomic document: balance and log change together
type WalletRepository interface {
	// ApplyTransaction atomically moves the user's balance by tx.Amount and appends tx.
	// If floor is set and the new balance would drop below it, nothing is written and
	// ErrInsufficientFunds is returned. Applying an id that already exists returns the
	// stored entry without writing again.
	ApplyTransaction(ctx context.Context, tx *entities.Transaction, floor *int64) (*entities.Transaction, error)

	// GetTransaction retrieves a transaction by id, returning nil if none exists
	GetTransaction(ctx context.Context, id string) (*entities.Transaction, error)

	// GetByUser returns the user's transactions, newest first
	GetByUser(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error)

	// SumByUser returns the sum of all the user's transaction amounts
	SumByUser(ctx context.Context, userID string) (int64, error)
}

// SessionRepository defines the interface for session data access
type SessionRepository interface {
	// GetByID retrieves a session, returning nil if none exists
	GetByID(ctx context.Context, id string) (*entities.Session, error)

	// Create stores a new session
	Create(ctx context.Context, session *entities.Session) error

	// UpdateSettings writes capacity, fee, start and lock window, provided the stored
	// status still equals session.Status. Otherwise ErrVersionConflict.
	UpdateSettings(ctx context.Context, session *entities.Session) error

	// TransitionStatus moves from -> to if the stored status is still from, stamping
	// the matching timestamp. It also bumps the roster version so in-flight roster
	// writes re-read the new status. Returns ErrInvalidTransition otherwise.
	TransitionStatus(ctx context.Context, id string, from, to entities.SessionStatus, at time.Time) error

	// AddEquipmentUnits increments the equipment counter and returns the new total
	AddEquipmentUnits(ctx context.Context, id string, units int) (int, error)
}

// RosterRepository stores each session's roster as one versioned document
type RosterRepository interface {
	// Load returns the roster ordered by position. ErrSessionNotFound if the session
	// does not exist.
	Load(ctx context.Context, sessionID string) (*entities.Roster, error)

	// Save applies change if the stored version equals change.ExpectedVersion and
	// returns the new version. ErrVersionConflict otherwise.
	Save(ctx context.Context, change *entities.RosterChange) (int64, error)
}

// ArchiveRepository defines the interface for closed session records
type ArchiveRepository interface {
	// Create stores an archive. ErrArchiveExists if the key is taken.
	Create(ctx context.Context, archive *entities.SessionArchive) error

	// GetByKey retrieves an archive, returning nil if none exists
	GetByKey(ctx context.Context, key string) (*entities.SessionArchive, error)

	// GetBySessionID retrieves the archive of a session, returning nil if none exists
	GetBySessionID(ctx context.Context, sessionID string) (*entities.SessionArchive, error)

	// List returns archives, most recent first
	List(ctx context.Context, limit int) ([]*entities.SessionArchive, error)
}

// SettingsRepository holds the process-wide singletons: the current session handle and
// the maintenance flag
type SettingsRepository interface {
	// GetCurrentSessionID returns "" if no session has been created yet
	GetCurrentSessionID(ctx context.Context) (string, error)

	// SwapCurrentSession sets the handle to next if it still equals expected.
	// ErrVersionConflict otherwise.
	SwapCurrentSession(ctx context.Context, expected, next string) error

	GetMaintenance(ctx context.Context) (bool, error)
	SetMaintenance(ctx context.Context, enabled bool) error
}

// Store bundles the repositories of one backend
type Store interface {
	UserRepository() UserRepository
	WalletRepository() WalletRepository
	SessionRepository() SessionRepository
	RosterRepository() RosterRepository
	ArchiveRepository() ArchiveRepository
	SettingsRepository() SettingsRepository
}
