package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"courtside/domain/entities"
	"courtside/domain/events"
	"courtside/domain/interfaces"
	"courtside/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Test constants for consistent test data
const (
	TestMinimumBalance      = int64(10)
	TestLowBalanceThreshold = int64(200)
	TestFee                 = int64(100)
	TestCapacity            = 2
)

// recordingNotifier keeps every event it is handed
type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, event events.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) ofType(t events.EventType) []events.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []events.Event
	for _, e := range n.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

// testEnv wires the four services over one in-memory store
type testEnv struct {
	store       *memory.Store
	notifier    *recordingNotifier
	ledger      interfaces.WalletLedger
	roster      interfaces.RosterManager
	lifecycle   interfaces.SessionLifecycle
	coordinator interfaces.RegistrationCoordinator
}

func testLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		DefaultCapacity:     TestCapacity,
		DefaultFee:          TestFee,
		DefaultLockWindow:   time.Hour,
		SessionInterval:     7 * 24 * time.Hour,
		SessionWeekday:      time.Saturday,
		SessionHour:         18,
		Rates:               entities.CostRates{PlayersPerCourt: 4, CourtRate: 300, UnitRate: 25},
		LowBalanceThreshold: TestLowBalanceThreshold,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	notifier := &recordingNotifier{}

	ledger := NewWalletLedger(store.UserRepository(), store.WalletRepository(), nil, LedgerConfig{
		MinimumBalance: TestMinimumBalance,
		MaxRetries:     2,
	})
	roster := NewRosterManager(store.SessionRepository(), store.RosterRepository(), nil, RosterConfig{MaxAttempts: 50})

	return &testEnv{
		store:    store,
		notifier: notifier,
		ledger:   ledger,
		roster:   roster,
		lifecycle: NewSessionLifecycle(store.SessionRepository(), store.ArchiveRepository(), store.SettingsRepository(),
			roster, ledger, notifier, nil, testLifecycleConfig()),
		coordinator: newTestCoordinator(store, ledger, roster, notifier),
	}
}

func newTestCoordinator(store *memory.Store, ledger interfaces.WalletLedger, roster interfaces.RosterManager, notifier interfaces.NotificationGateway) interfaces.RegistrationCoordinator {
	return NewRegistrationCoordinator(store.UserRepository(), store.SessionRepository(), store.SettingsRepository(),
		ledger, roster, notifier, nil, CoordinatorConfig{
			MinimumBalance:      TestMinimumBalance,
			LowBalanceThreshold: TestLowBalanceThreshold,
			OperationTimeout:    5 * time.Second,
			CompensationTimeout: time.Second,
		})
}

// createUser stores an active player and funds them through the ledger so the balance
// always matches the log
func (e *testEnv) createUser(t *testing.T, id string, balance int64) *entities.User {
	t.Helper()
	ctx := context.Background()

	user := &entities.User{ID: id, DisplayName: id, Role: entities.RolePlayer, Active: true}
	require.NoError(t, e.store.UserRepository().Create(ctx, user))
	if balance > 0 {
		_, err := e.ledger.Credit(ctx, id, balance, entities.ReasonTopUp)
		require.NoError(t, err)
	}
	user.Balance = balance
	return user
}

// createSession stores a session directly in the given state and makes it current
func (e *testEnv) createSession(t *testing.T, status entities.SessionStatus, capacity int, fee int64, opts ...func(*entities.Session)) *entities.Session {
	t.Helper()
	ctx := context.Background()

	session := &entities.Session{
		ID:             uuid.NewString(),
		Status:         status,
		Capacity:       capacity,
		FeeAmount:      fee,
		ScheduledStart: time.Now().Add(48 * time.Hour),
		LockWindow:     time.Hour,
		CreatedAt:      time.Now(),
	}
	for _, opt := range opts {
		opt(session)
	}
	require.NoError(t, e.store.SessionRepository().Create(ctx, session))

	current, err := e.store.SettingsRepository().GetCurrentSessionID(ctx)
	require.NoError(t, err)
	require.NoError(t, e.store.SettingsRepository().SwapCurrentSession(ctx, current, session.ID))
	return session
}

func lockedSoon(s *entities.Session) {
	s.ScheduledStart = time.Now().Add(30 * time.Minute)
	s.LockWindow = time.Hour
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	user, err := e.store.UserRepository().GetByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user.Balance
}

func (e *testEnv) transactions(t *testing.T, userID string) []*entities.Transaction {
	t.Helper()
	txs, err := e.store.WalletRepository().GetByUser(context.Background(), userID, 0)
	require.NoError(t, err)
	return txs
}

func (e *testEnv) rosterOf(t *testing.T, sessionID string) *entities.Roster {
	t.Helper()
	roster, err := e.store.RosterRepository().Load(context.Background(), sessionID)
	require.NoError(t, err)
	return roster
}

// requireConsistent asserts the ledger invariant for every user and the position
// invariant for the session
func (e *testEnv) requireConsistent(t *testing.T, sessionID string) {
	t.Helper()
	ctx := context.Background()

	users, err := e.store.UserRepository().GetAll(ctx)
	require.NoError(t, err)
	for _, user := range users {
		report, err := e.ledger.Reconcile(ctx, user.ID)
		require.NoError(t, err)
		require.Zerof(t, report.Drift(), "balance of %s drifted from its log", user.ID)
	}

	if sessionID != "" {
		require.NoError(t, e.rosterOf(t, sessionID).CheckDense())
	}
}
