package testhelpers

import (
	"context"
	"time"

	"courtside/domain/entities"
	"courtside/domain/events"
	"courtside/domain/interfaces"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetAll(ctx context.Context) ([]*entities.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetBelowBalance(ctx context.Context, threshold int64) ([]*entities.User, error) {
	args := m.Called(ctx, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.User), args.Error(1)
}

func (m *MockUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

// MockWalletRepository is a mock implementation of WalletRepository
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) ApplyTransaction(ctx context.Context, tx *entities.Transaction, floor *int64) (*entities.Transaction, error) {
	args := m.Called(ctx, tx, floor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockWalletRepository) GetTransaction(ctx context.Context, id string) (*entities.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockWalletRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Transaction), args.Error(1)
}

func (m *MockWalletRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Session), args.Error(1)
}

func (m *MockSessionRepository) Create(ctx context.Context, session *entities.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) UpdateSettings(ctx context.Context, session *entities.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) TransitionStatus(ctx context.Context, id string, from, to entities.SessionStatus, at time.Time) error {
	args := m.Called(ctx, id, from, to, at)
	return args.Error(0)
}

func (m *MockSessionRepository) AddEquipmentUnits(ctx context.Context, id string, units int) (int, error) {
	args := m.Called(ctx, id, units)
	return args.Int(0), args.Error(1)
}

// MockRosterRepository is a mock implementation of RosterRepository
type MockRosterRepository struct {
	mock.Mock
}

func (m *MockRosterRepository) Load(ctx context.Context, sessionID string) (*entities.Roster, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Roster), args.Error(1)
}

func (m *MockRosterRepository) Save(ctx context.Context, change *entities.RosterChange) (int64, error) {
	args := m.Called(ctx, change)
	return args.Get(0).(int64), args.Error(1)
}

// MockArchiveRepository is a mock implementation of ArchiveRepository
type MockArchiveRepository struct {
	mock.Mock
}

func (m *MockArchiveRepository) Create(ctx context.Context, archive *entities.SessionArchive) error {
	args := m.Called(ctx, archive)
	return args.Error(0)
}

func (m *MockArchiveRepository) GetByKey(ctx context.Context, key string) (*entities.SessionArchive, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SessionArchive), args.Error(1)
}

func (m *MockArchiveRepository) GetBySessionID(ctx context.Context, sessionID string) (*entities.SessionArchive, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SessionArchive), args.Error(1)
}

func (m *MockArchiveRepository) List(ctx context.Context, limit int) ([]*entities.SessionArchive, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SessionArchive), args.Error(1)
}

// MockSettingsRepository is a mock implementation of SettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetCurrentSessionID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSettingsRepository) SwapCurrentSession(ctx context.Context, expected, next string) error {
	args := m.Called(ctx, expected, next)
	return args.Error(0)
}

func (m *MockSettingsRepository) GetMaintenance(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettingsRepository) SetMaintenance(ctx context.Context, enabled bool) error {
	args := m.Called(ctx, enabled)
	return args.Error(0)
}

// MockNotificationGateway is a mock implementation of NotificationGateway
type MockNotificationGateway struct {
	mock.Mock
}

func (m *MockNotificationGateway) Notify(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockWalletLedger is a mock implementation of WalletLedger
type MockWalletLedger struct {
	mock.Mock
}

func (m *MockWalletLedger) Debit(ctx context.Context, userID string, amount int64, reason entities.TransactionReason, opts ...interfaces.LedgerOption) (*entities.Transaction, error) {
	args := m.Called(ctx, userID, amount, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockWalletLedger) Credit(ctx context.Context, userID string, amount int64, reason entities.TransactionReason, opts ...interfaces.LedgerOption) (*entities.Transaction, error) {
	args := m.Called(ctx, userID, amount, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockWalletLedger) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64, opts ...interfaces.LedgerOption) (*interfaces.TransferResult, error) {
	args := m.Called(ctx, fromUserID, toUserID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.TransferResult), args.Error(1)
}

func (m *MockWalletLedger) Verify(ctx context.Context, transactionID string) (*entities.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockWalletLedger) Reconcile(ctx context.Context, userID string) (*interfaces.BalanceReport, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.BalanceReport), args.Error(1)
}

func (m *MockWalletLedger) History(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Transaction), args.Error(1)
}

// MockRosterManager is a mock implementation of RosterManager
type MockRosterManager struct {
	mock.Mock
}

func (m *MockRosterManager) Register(ctx context.Context, sessionID string, reg *entities.Registrant) (*interfaces.RosterRegistration, error) {
	args := m.Called(ctx, sessionID, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.RosterRegistration), args.Error(1)
}

func (m *MockRosterManager) Cancel(ctx context.Context, sessionID, registrantID string) (*interfaces.RosterRemoval, error) {
	args := m.Called(ctx, sessionID, registrantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.RosterRemoval), args.Error(1)
}

func (m *MockRosterManager) CancelMany(ctx context.Context, sessionID string, registrantIDs []string) (*interfaces.RosterRemoval, error) {
	args := m.Called(ctx, sessionID, registrantIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.RosterRemoval), args.Error(1)
}

func (m *MockRosterManager) Recompact(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *MockRosterManager) MarkPaid(ctx context.Context, sessionID, registrantID string) error {
	args := m.Called(ctx, sessionID, registrantID)
	return args.Error(0)
}

func (m *MockRosterManager) Get(ctx context.Context, sessionID string) (*entities.Roster, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Roster), args.Error(1)
}
