package application

import (
	"context"
	"testing"
	"time"

	"courtside/application/mocks"
	"courtside/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	adminCredential  = entities.Credential{UserID: "admin", Secret: "admin-secret"}
	playerCredential = entities.Credential{UserID: "ann", Secret: "ann-secret"}
)

func newTestCommands(t *testing.T) (*Commands, *Services, *mocks.MockAuthProvider) {
	t.Helper()
	ctrl := gomock.NewController(t)
	auth := mocks.NewMockAuthProvider(ctrl)
	svc := newTestServices(t)

	createTestUser(t, svc, "admin", entities.RoleAdmin, 0)
	createTestUser(t, svc, "ann", entities.RolePlayer, 0)

	auth.EXPECT().Verify(gomock.Any(), adminCredential).Return("admin", nil).AnyTimes()
	auth.EXPECT().Verify(gomock.Any(), playerCredential).Return("ann", nil).AnyTimes()

	return NewCommands(auth, svc), svc, auth
}

func TestCommands_RejectsFailedVerification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	commands, _, auth := newTestCommands(t)

	bad := entities.Credential{UserID: "ann", Secret: "wrong"}
	auth.EXPECT().Verify(gomock.Any(), bad).Return("", entities.ErrPermissionDenied).Times(2)

	_, err := commands.Register(ctx, bad)
	assert.ErrorIs(t, err, entities.ErrPermissionDenied)

	_, err = commands.TopUp(ctx, bad, entities.TopUpRequest{UserID: "ann", Amount: 100})
	assert.ErrorIs(t, err, entities.ErrPermissionDenied)
}

func TestCommands_UnknownOrInactiveCaller(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	commands, svc, auth := newTestCommands(t)

	ghost := entities.Credential{UserID: "ghost", Secret: "x"}
	auth.EXPECT().Verify(gomock.Any(), ghost).Return("ghost", nil)
	_, _, err := commands.Wallet(ctx, ghost, 10)
	assert.ErrorIs(t, err, entities.ErrPermissionDenied)

	require.NoError(t, svc.Store.UserRepository().SetActive(ctx, "ann", false))
	_, _, err = commands.Wallet(ctx, playerCredential, 10)
	assert.ErrorIs(t, err, entities.ErrUserInactive)
}

func TestCommands_AdminCommandsRequireManagingRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	commands, svc, _ := newTestCommands(t)

	tests := []struct {
		name string
		run  func() error
	}{
		{"top up", func() error {
			_, err := commands.TopUp(ctx, playerCredential, entities.TopUpRequest{UserID: "ann", Amount: 1000})
			return err
		}},
		{"adjust", func() error {
			_, err := commands.AdjustBalance(ctx, playerCredential, entities.AdjustmentRequest{UserID: "ann", Amount: 1000, Note: "x"})
			return err
		}},
		{"publish", func() error {
			_, err := commands.Publish(ctx, playerCredential)
			return err
		}},
		{"close", func() error {
			_, err := commands.Close(ctx, playerCredential)
			return err
		}},
		{"reset", func() error {
			_, err := commands.Reset(ctx, playerCredential)
			return err
		}},
		{"maintenance", func() error {
			return commands.SetMaintenance(ctx, playerCredential, true)
		}},
		{"reconcile", func() error {
			_, err := commands.Reconcile(ctx, playerCredential, "ann")
			return err
		}},
		{"add registrant", func() error {
			_, err := commands.AddRegistrant(ctx, playerCredential, "ann", "")
			return err
		}},
	}

	for _, tt := range tests {
		assert.ErrorIs(t, tt.run(), entities.ErrPermissionDenied, tt.name)
	}

	user, err := svc.Store.UserRepository().GetByID(ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Balance)
}

func TestCommands_AdjustBalanceRequiresNote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	commands, _, _ := newTestCommands(t)

	_, err := commands.AdjustBalance(ctx, adminCredential, entities.AdjustmentRequest{UserID: "ann", Amount: -50})
	assert.ErrorContains(t, err, "note")

	tx, err := commands.AdjustBalance(ctx, adminCredential, entities.AdjustmentRequest{UserID: "ann", Amount: -50, Note: "court damage"})
	require.NoError(t, err)
	assert.Equal(t, int64(-50), tx.BalanceAfter, "corrections may go below the floor")
}

func TestCommands_SessionFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	commands, _, _ := newTestCommands(t)

	_, err := commands.TopUp(ctx, adminCredential, entities.TopUpRequest{UserID: "ann", Amount: 500, Note: "cash"})
	require.NoError(t, err)

	start := time.Now().Add(72 * time.Hour)
	_, err = commands.Configure(ctx, adminCredential, entities.SessionSettings{ScheduledStart: &start})
	require.NoError(t, err)

	_, err = commands.Register(ctx, playerCredential)
	assert.ErrorIs(t, err, entities.ErrSessionNotOpen, "drafts are closed to players")

	_, err = commands.Publish(ctx, adminCredential)
	require.NoError(t, err)

	result, err := commands.Register(ctx, playerCredential)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Position)
	assert.Equal(t, entities.ClassificationActive, result.Classification)
	require.NotNil(t, result.Charge)

	user, history, err := commands.Wallet(ctx, playerCredential, 10)
	require.NoError(t, err)
	assert.Equal(t, result.Charge.BalanceAfter, user.Balance)
	assert.Len(t, history, 2)

	session, roster, err := commands.Roster(ctx, playerCredential)
	require.NoError(t, err)
	assert.True(t, session.IsPublished())
	require.Len(t, roster.Registrants, 1)

	cancelled, err := commands.Cancel(ctx, playerCredential)
	require.NoError(t, err)
	assert.Len(t, cancelled.Removed, 1)
	assert.Equal(t, -result.Charge.Amount, cancelled.TotalRefunded)

	report, err := commands.Reconcile(ctx, adminCredential, "ann")
	require.NoError(t, err)
	assert.Zero(t, report.Drift())
	assert.Equal(t, int64(500), report.CachedBalance)

	closed, err := commands.Close(ctx, adminCredential)
	require.NoError(t, err)
	assert.Equal(t, 0, closed.Archive.ActiveCount)

	archives, err := commands.Archives(ctx, adminCredential, 10)
	require.NoError(t, err)
	assert.Len(t, archives, 1)
}
