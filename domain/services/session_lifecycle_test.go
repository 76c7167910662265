package services

import (
	"context"
	"testing"
	"time"

	"courtside/domain/entities"
	"courtside/domain/events"
	"courtside/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle_CurrentCreatesFirstDraft(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	first, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.SessionStatusDraft, first.Status)
	assert.Equal(t, TestCapacity, first.Capacity)
	assert.Equal(t, TestFee, first.FeeAmount)
	assert.Equal(t, time.Saturday, first.ScheduledStart.Weekday())
	assert.Equal(t, 18, first.ScheduledStart.Hour())
	assert.True(t, first.ScheduledStart.After(time.Now()))

	again, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestSessionLifecycle_PublishSettlesActiveRegistrants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	session := env.createSession(t, entities.SessionStatusDraft, 3, 100)
	env.createUser(t, "rich", 1000)
	env.createUser(t, "edge", 150)
	env.createUser(t, "broke", 50)
	env.createUser(t, "late", 1000)

	for _, owner := range []string{"rich", "edge", "broke", "late"} {
		_, err := env.coordinator.AdminAddRegistrant(ctx, entities.AddRegistrantRequest{SessionID: session.ID, OwnerUserID: owner})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1000), env.balance(t, "rich"), "draft entries are not charged")

	report, err := env.lifecycle.Publish(ctx, session.ID)
	require.NoError(t, err)

	assert.Len(t, report.Charged, 2)
	require.Len(t, report.Unpaid, 1)
	assert.Equal(t, "broke", report.Unpaid[0].Registrant.OwnerUserID)
	assert.ErrorIs(t, report.Unpaid[0].Err, entities.ErrInsufficientFunds)
	assert.Empty(t, report.Unreconciled)
	assert.Equal(t, int64(200), report.TotalCharged)

	assert.Equal(t, int64(900), env.balance(t, "rich"))
	assert.Equal(t, int64(50), env.balance(t, "edge"))
	assert.Equal(t, int64(50), env.balance(t, "broke"))
	assert.Equal(t, int64(1000), env.balance(t, "late"), "waitlisted entries are not charged")

	roster := env.rosterOf(t, session.ID)
	paid := map[string]bool{}
	for _, reg := range roster.Registrants {
		paid[reg.OwnerUserID] = reg.Paid
	}
	assert.Equal(t, map[string]bool{"rich": true, "edge": true, "broke": false, "late": false}, paid)

	published, err := env.lifecycle.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SessionStatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)

	announcements := env.notifier.ofType(events.EventTypeSessionPublished)
	require.Len(t, announcements, 1)
	assert.Equal(t, events.SessionPublishedEvent{SessionID: session.ID, AvailableSlots: 0, WaitlistCount: 1}, announcements[0])

	low := env.notifier.ofType(events.EventTypeLowBalance)
	require.Len(t, low, 1)
	assert.Equal(t, "edge", low[0].(events.LowBalanceEvent).UserID)

	settlement := env.transactions(t, "rich")[0]
	assert.Equal(t, entities.ReasonSessionSettlement, settlement.Reason)

	env.requireConsistent(t, session.ID)
}

func TestSessionLifecycle_PublishRequiresDraft(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	published := env.createSession(t, entities.SessionStatusPublished, 2, 100)
	_, err := env.lifecycle.Publish(ctx, published.ID)
	assert.ErrorIs(t, err, entities.ErrInvalidTransition)

	closed := env.createSession(t, entities.SessionStatusClosed, 2, 100)
	_, err = env.lifecycle.Publish(ctx, closed.ID)
	assert.ErrorIs(t, err, entities.ErrSessionClosed)

	_, err = env.lifecycle.Publish(ctx, "missing")
	assert.ErrorIs(t, err, entities.ErrSessionNotFound)
}

func TestSessionLifecycle_Configure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	draft := env.createSession(t, entities.SessionStatusDraft, 2, 100)
	capacity := 6
	fee := int64(150)

	updated, err := env.lifecycle.Configure(ctx, draft.ID, entities.SessionSettings{Capacity: &capacity, FeeAmount: &fee})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Capacity)
	assert.Equal(t, int64(150), updated.FeeAmount)

	published := env.createSession(t, entities.SessionStatusPublished, 2, 100)
	_, err = env.lifecycle.Configure(ctx, published.ID, entities.SessionSettings{FeeAmount: &fee})
	assert.ErrorIs(t, err, entities.ErrInvalidTransition)

	_, err = env.lifecycle.Configure(ctx, published.ID, entities.SessionSettings{Capacity: &capacity})
	assert.NoError(t, err)

	zero := 0
	_, err = env.lifecycle.Configure(ctx, published.ID, entities.SessionSettings{Capacity: &zero})
	assert.Error(t, err)

	closed := env.createSession(t, entities.SessionStatusClosed, 2, 100)
	_, err = env.lifecycle.Configure(ctx, closed.ID, entities.SessionSettings{Capacity: &capacity})
	assert.ErrorIs(t, err, entities.ErrSessionClosed)
}

func TestSessionLifecycle_CapacityChangeReclassifies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	session := env.createSession(t, entities.SessionStatusPublished, 1, 100)
	env.createUser(t, "ann", 1000)
	env.createUser(t, "bob", 1000)
	_, err := env.coordinator.RegisterSelf(ctx, session.ID, "ann")
	require.NoError(t, err)
	bob, err := env.coordinator.RegisterSelf(ctx, session.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, entities.ClassificationWaitlisted, bob.Classification)

	capacity := 2
	updated, err := env.lifecycle.Configure(ctx, session.ID, entities.SessionSettings{Capacity: &capacity})
	require.NoError(t, err)

	roster := env.rosterOf(t, session.ID)
	assert.Len(t, roster.Active(updated.Capacity), 2)
}

func TestSessionLifecycle_CapacityGrowthSettlesPromotedEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	session := env.createSession(t, entities.SessionStatusDraft, 1, 100)
	env.createUser(t, "ann", 1000)
	env.createUser(t, "bob", 1000)
	for _, owner := range []string{"ann", "bob"} {
		_, err := env.coordinator.AdminAddRegistrant(ctx, entities.AddRegistrantRequest{SessionID: session.ID, OwnerUserID: owner})
		require.NoError(t, err)
	}
	_, err := env.lifecycle.Publish(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), env.balance(t, "bob"))

	capacity := 2
	_, err = env.lifecycle.Configure(ctx, session.ID, entities.SessionSettings{Capacity: &capacity})
	require.NoError(t, err)

	assert.Equal(t, int64(900), env.balance(t, "bob"))
	for _, reg := range env.rosterOf(t, session.ID).Registrants {
		assert.Truef(t, reg.Paid, "%s should be paid once active", reg.DisplayName)
	}

	// Shrinking and growing again does not charge a second time
	one := 1
	_, err = env.lifecycle.Configure(ctx, session.ID, entities.SessionSettings{Capacity: &one})
	require.NoError(t, err)
	_, err = env.lifecycle.Configure(ctx, session.ID, entities.SessionSettings{Capacity: &capacity})
	require.NoError(t, err)
	assert.Equal(t, int64(900), env.balance(t, "bob"))

	env.requireConsistent(t, session.ID)
}

func TestSessionLifecycle_Close(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	session := env.createSession(t, entities.SessionStatusPublished, 5, 100)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		env.createUser(t, id, 1000)
		_, err := env.coordinator.RegisterSelf(ctx, session.ID, id)
		require.NoError(t, err)
	}
	_, err := env.lifecycle.RecordEquipment(ctx, session.ID, 2)
	require.NoError(t, err)
	updated, err := env.lifecycle.RecordEquipment(ctx, session.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.EquipmentUnitsUsed)

	result, err := env.lifecycle.Close(ctx, session.ID)
	require.NoError(t, err)

	archive := result.Archive
	assert.Equal(t, session.CalendarDate(), archive.Key)
	assert.Equal(t, 5, archive.ActiveCount)
	assert.Equal(t, 5, archive.PaidActiveCount)
	assert.Equal(t, 2, archive.CourtsUsed)
	assert.Equal(t, int64(500), archive.Income)
	assert.Equal(t, int64(2*300+3*25), archive.Expense)
	assert.Equal(t, archive.Income-archive.Expense, archive.Net)
	assert.Len(t, archive.Registrants, 6)

	require.NotNil(t, result.NextSession)
	next := result.NextSession
	assert.Equal(t, entities.SessionStatusDraft, next.Status)
	assert.Equal(t, session.Capacity, next.Capacity)
	assert.Equal(t, session.FeeAmount, next.FeeAmount)
	assert.True(t, next.ScheduledStart.Equal(session.ScheduledStart.Add(7*24*time.Hour)))

	current, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.ID, current.ID)

	// A closed roster is frozen
	_, err = env.coordinator.CancelSelf(ctx, session.ID, "a")
	assert.ErrorIs(t, err, entities.ErrSessionNotOpen)
	_, err = env.lifecycle.Close(ctx, session.ID)
	assert.ErrorIs(t, err, entities.ErrSessionClosed)
	_, err = env.lifecycle.RecordEquipment(ctx, session.ID, 1)
	assert.ErrorIs(t, err, entities.ErrSessionClosed)

	archives, err := env.lifecycle.Archives(ctx, 10)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, archive.Key, archives[0].Key)
}

func TestSessionLifecycle_ArchiveKeyCollision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	start := time.Now().Add(72 * time.Hour).Truncate(time.Hour)
	sameDay := func(s *entities.Session) { s.ScheduledStart = start }

	first := env.createSession(t, entities.SessionStatusPublished, 2, 100, sameDay)
	firstClose, err := env.lifecycle.Close(ctx, first.ID)
	require.NoError(t, err)

	second := env.createSession(t, entities.SessionStatusPublished, 2, 100, sameDay)
	secondClose, err := env.lifecycle.Close(ctx, second.ID)
	require.NoError(t, err)

	assert.Equal(t, first.CalendarDate(), firstClose.Archive.Key)
	assert.Equal(t, first.CalendarDate()+"-2", secondClose.Archive.Key)
}

func TestSessionLifecycle_ArchiveSessionIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	session := env.createSession(t, entities.SessionStatusPublished, 2, 100)
	_, err := env.lifecycle.ArchiveSession(ctx, session.ID)
	assert.ErrorIs(t, err, entities.ErrInvalidTransition)

	closed, err := env.lifecycle.Close(ctx, session.ID)
	require.NoError(t, err)

	again, err := env.lifecycle.ArchiveSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, closed.Archive.Key, again.Key)

	archives, err := env.lifecycle.Archives(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, archives, 1)
}

func TestSessionLifecycle_CloseDoesNotMoveForeignHandle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	old := env.createSession(t, entities.SessionStatusPublished, 2, 100)
	current := env.createSession(t, entities.SessionStatusDraft, 2, 100)

	result, err := env.lifecycle.Close(ctx, old.ID)
	require.NoError(t, err)
	assert.Nil(t, result.NextSession)

	got, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, current.ID, got.ID)
}

func TestSessionLifecycle_CurrentAdvancesPastClosedSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	closed := env.createSession(t, entities.SessionStatusClosed, 3, 120)

	current, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, closed.ID, current.ID)
	assert.Equal(t, entities.SessionStatusDraft, current.Status)
	assert.Equal(t, 3, current.Capacity)
	assert.Equal(t, int64(120), current.FeeAmount)
}

func TestSessionLifecycle_Reset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	draft := env.createSession(t, entities.SessionStatusDraft, 5, 100)
	env.createUser(t, "p", 1000)
	_, err := env.coordinator.AdminAddRegistrant(ctx, entities.AddRegistrantRequest{SessionID: draft.ID, OwnerUserID: "p"})
	require.NoError(t, err)

	fresh, err := env.lifecycle.Reset(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, draft.ID, fresh.ID)
	assert.Equal(t, TestCapacity, fresh.Capacity)
	assert.Equal(t, 0, env.rosterOf(t, fresh.ID).Count())

	retired, err := env.lifecycle.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, retired.IsClosed())

	archives, err := env.lifecycle.Archives(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, archives)
	assert.Equal(t, int64(1000), env.balance(t, "p"))
}

func TestSessionLifecycle_ResetRefusesPaidRoster(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	session := env.createSession(t, entities.SessionStatusPublished, 5, 100)
	env.createUser(t, "p", 1000)
	_, err := env.coordinator.RegisterSelf(ctx, session.ID, "p")
	require.NoError(t, err)

	_, err = env.lifecycle.Reset(ctx)
	assert.ErrorIs(t, err, entities.ErrInvalidTransition)

	current, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.ID, current.ID)
}

func TestSessionLifecycle_Maintenance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	enabled, err := env.lifecycle.Maintenance(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, env.lifecycle.SetMaintenance(ctx, true))
	enabled, err = env.lifecycle.Maintenance(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestSessionLifecycle_RecordEquipmentRejectsNonPositive(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	session := env.createSession(t, entities.SessionStatusDraft, 2, 100)

	_, err := env.lifecycle.RecordEquipment(context.Background(), session.ID, 0)
	assert.ErrorIs(t, err, entities.ErrInvalidAmount)
}

func TestSessionLifecycle_ConcurrentPublishChargesOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	session := env.createSession(t, entities.SessionStatusDraft, 4, 100)
	for _, id := range []string{"a", "b", "c"} {
		env.createUser(t, id, 1000)
		_, err := env.coordinator.AdminAddRegistrant(ctx, entities.AddRegistrantRequest{SessionID: session.ID, OwnerUserID: id})
		require.NoError(t, err)
	}

	reports := make(chan *interfaces.SettlementReport, 2)
	for i := 0; i < 2; i++ {
		go func() {
			report, _ := env.lifecycle.Publish(ctx, session.ID)
			reports <- report
		}()
	}
	<-reports
	<-reports

	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, int64(900), env.balance(t, id))
	}
	env.requireConsistent(t, session.ID)
}
