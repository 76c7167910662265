package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"courtside/domain/entities"
	"courtside/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createTestRegistrant(name string) *entities.Registrant {
	return &entities.Registrant{
		OwnerUserID: name,
		DisplayName: name,
		Kind:        entities.RegistrantKindSelf,
	}
}

func TestRosterManager_Register(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	session := env.createSession(t, entities.SessionStatusPublished, 2, 100)

	var classifications []entities.Classification
	for i, name := range []string{"ann", "bob", "cat"} {
		result, err := env.roster.Register(ctx, session.ID, createTestRegistrant(name))
		require.NoError(t, err)
		assert.Equal(t, i+1, result.Position)
		assert.NotEmpty(t, result.Registrant.ID)
		assert.Equal(t, session.ID, result.Registrant.SessionID)
		classifications = append(classifications, result.Classification)
	}

	assert.Equal(t, []entities.Classification{
		entities.ClassificationActive,
		entities.ClassificationActive,
		entities.ClassificationWaitlisted,
	}, classifications)
}

func TestRosterManager_RegisterRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  entities.SessionStatus
		opts    []func(*entities.Session)
		seed    []*entities.Registrant
		reg     *entities.Registrant
		wantErr error
	}{
		{
			name:    "duplicate self",
			status:  entities.SessionStatusPublished,
			seed:    []*entities.Registrant{createTestRegistrant("ann")},
			reg:     &entities.Registrant{OwnerUserID: "ann", DisplayName: "annie", Kind: entities.RegistrantKindSelf},
			wantErr: entities.ErrAlreadyRegistered,
		},
		{
			name:    "duplicate name",
			status:  entities.SessionStatusPublished,
			seed:    []*entities.Registrant{createTestRegistrant("ann")},
			reg:     &entities.Registrant{OwnerUserID: "other", DisplayName: "ann", Kind: entities.RegistrantKindSelf},
			wantErr: entities.ErrDuplicateName,
		},
		{
			name:    "locked",
			status:  entities.SessionStatusPublished,
			opts:    []func(*entities.Session){lockedSoon},
			reg:     createTestRegistrant("ann"),
			wantErr: entities.ErrSessionNotOpen,
		},
		{
			name:    "closed",
			status:  entities.SessionStatusClosed,
			reg:     createTestRegistrant("ann"),
			wantErr: entities.ErrSessionNotOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			env := newTestEnv(t)
			session := env.createSession(t, entities.SessionStatusPublished, 4, 100)
			for _, reg := range tt.seed {
				_, err := env.roster.Register(ctx, session.ID, reg)
				require.NoError(t, err)
			}

			target := session
			if tt.status != entities.SessionStatusPublished || len(tt.opts) > 0 {
				target = env.createSession(t, tt.status, 4, 100, tt.opts...)
			}

			_, err := env.roster.Register(ctx, target.ID, tt.reg)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, len(tt.seed), env.rosterOf(t, session.ID).Count())
		})
	}
}

func TestRosterManager_DraftAcceptsEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	session := env.createSession(t, entities.SessionStatusDraft, 2, 100)

	result, err := env.roster.Register(ctx, session.ID, createTestRegistrant("ann"))
	require.NoError(t, err)
	assert.False(t, result.Registrant.Paid)
}

func TestRosterManager_RegisterIsIdempotentOnID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	session := env.createSession(t, entities.SessionStatusPublished, 2, 100)

	reg := createTestRegistrant("ann")
	reg.ID = "fixed-id"

	first, err := env.roster.Register(ctx, session.ID, reg)
	require.NoError(t, err)
	version := env.rosterOf(t, session.ID).Version

	second, err := env.roster.Register(ctx, session.ID, reg)
	require.NoError(t, err)

	assert.Equal(t, first.Position, second.Position)
	assert.Equal(t, 1, env.rosterOf(t, session.ID).Count())
	assert.Equal(t, version, env.rosterOf(t, session.ID).Version)
}

func TestRosterManager_CancelRecompacts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	session := env.createSession(t, entities.SessionStatusPublished, 2, 100)

	ids := map[string]string{}
	for _, name := range []string{"ann", "bob", "cat", "dan"} {
		result, err := env.roster.Register(ctx, session.ID, createTestRegistrant(name))
		require.NoError(t, err)
		ids[name] = result.Registrant.ID
	}

	removal, err := env.roster.Cancel(ctx, session.ID, ids["bob"])
	require.NoError(t, err)
	require.Len(t, removal.Removed, 1)
	assert.Equal(t, 2, removal.Removed[0].Position)
	assert.Len(t, removal.Moved, 2)
	require.Len(t, removal.Promoted, 1, "only cat crosses into the active range")
	assert.Equal(t, ids["cat"], removal.Promoted[0].ID)
	assert.Equal(t, 2, removal.Capacity)

	roster := env.rosterOf(t, session.ID)
	require.NoError(t, roster.CheckDense())
	assert.Equal(t, 2, roster.Find(ids["cat"]).Position)
	assert.Equal(t, 3, roster.Find(ids["dan"]).Position)

	moved, err := env.roster.Recompact(ctx, session.ID)
	require.NoError(t, err)
	assert.Zero(t, moved)
	assert.Equal(t, roster.Version, env.rosterOf(t, session.ID).Version, "dense roster is not rewritten")

	_, err = env.roster.Cancel(ctx, session.ID, ids["bob"])
	assert.ErrorIs(t, err, entities.ErrRegistrantNotFound)
}

func TestRosterManager_CancelIgnoresLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	session := env.createSession(t, entities.SessionStatusPublished, 2, 100)

	result, err := env.roster.Register(ctx, session.ID, createTestRegistrant("ann"))
	require.NoError(t, err)

	start := time.Now().Add(5 * time.Minute)
	_, err = env.lifecycle.Configure(ctx, session.ID, entities.SessionSettings{ScheduledStart: &start})
	require.NoError(t, err)

	_, err = env.roster.Cancel(ctx, session.ID, result.Registrant.ID)
	assert.NoError(t, err)
}

func TestRosterManager_MarkPaid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	session := env.createSession(t, entities.SessionStatusDraft, 2, 100)

	result, err := env.roster.Register(ctx, session.ID, createTestRegistrant("ann"))
	require.NoError(t, err)

	require.NoError(t, env.roster.MarkPaid(ctx, session.ID, result.Registrant.ID))
	assert.True(t, env.rosterOf(t, session.ID).Find(result.Registrant.ID).Paid)

	assert.ErrorIs(t, env.roster.MarkPaid(ctx, session.ID, result.Registrant.ID), entities.ErrAlreadyPaid)
	assert.ErrorIs(t, env.roster.MarkPaid(ctx, session.ID, "missing"), entities.ErrRegistrantNotFound)
}

func TestRosterManager_ClosedRosterIsFrozen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	session := env.createSession(t, entities.SessionStatusPublished, 2, 100)

	result, err := env.roster.Register(ctx, session.ID, createTestRegistrant("ann"))
	require.NoError(t, err)
	require.NoError(t, env.store.SessionRepository().TransitionStatus(ctx, session.ID,
		entities.SessionStatusPublished, entities.SessionStatusClosed, time.Now()))

	_, err = env.roster.Cancel(ctx, session.ID, result.Registrant.ID)
	assert.ErrorIs(t, err, entities.ErrSessionClosed)
	assert.ErrorIs(t, env.roster.MarkPaid(ctx, session.ID, result.Registrant.ID), entities.ErrSessionClosed)
}

func TestRosterManager_ConcurrentWritesStayDense(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	session := env.createSession(t, entities.SessionStatusPublished, 5, 100)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("p%02d", i)
			result, err := env.roster.Register(ctx, session.ID, createTestRegistrant(name))
			if err != nil {
				return
			}
			if i%2 == 0 {
				_, _ = env.roster.Cancel(ctx, session.ID, result.Registrant.ID)
			}
		}(i)
	}
	wg.Wait()

	roster := env.rosterOf(t, session.ID)
	require.NoError(t, roster.CheckDense())
	assert.Equal(t, 8, roster.Count())
}

func TestRosterManager_RetriesOnConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	session := &entities.Session{ID: "s1", Status: entities.SessionStatusPublished, Capacity: 2, ScheduledStart: time.Now().Add(48 * time.Hour)}
	sessionRepo := new(testhelpers.MockSessionRepository)
	rosterRepo := new(testhelpers.MockRosterRepository)

	sessionRepo.On("GetByID", ctx, "s1").Return(session, nil)
	rosterRepo.On("Load", ctx, "s1").Return(&entities.Roster{SessionID: "s1", Version: 3}, nil)
	rosterRepo.On("Save", ctx, mock.AnythingOfType("*entities.RosterChange")).Return(int64(0), entities.ErrVersionConflict).Twice()
	rosterRepo.On("Save", ctx, mock.MatchedBy(func(c *entities.RosterChange) bool {
		return c.ExpectedVersion == 3 && len(c.Inserted) == 1 && c.Inserted[0].Position == 1
	})).Return(int64(4), nil).Once()

	manager := NewRosterManager(sessionRepo, rosterRepo, nil, RosterConfig{MaxAttempts: 5})

	result, err := manager.Register(ctx, "s1", createTestRegistrant("ann"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Position)
	rosterRepo.AssertNumberOfCalls(t, "Save", 3)
}

func TestRosterManager_RetryBudgetExhausted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	session := &entities.Session{ID: "s1", Status: entities.SessionStatusPublished, Capacity: 2, ScheduledStart: time.Now().Add(48 * time.Hour)}
	sessionRepo := new(testhelpers.MockSessionRepository)
	rosterRepo := new(testhelpers.MockRosterRepository)

	sessionRepo.On("GetByID", ctx, "s1").Return(session, nil)
	rosterRepo.On("Load", ctx, "s1").Return(&entities.Roster{SessionID: "s1"}, nil)
	rosterRepo.On("Save", ctx, mock.Anything).Return(int64(0), entities.ErrVersionConflict)

	manager := NewRosterManager(sessionRepo, rosterRepo, nil, RosterConfig{MaxAttempts: 3})

	_, err := manager.Register(ctx, "s1", createTestRegistrant("ann"))
	assert.ErrorIs(t, err, entities.ErrRetryBudgetExhausted)
	assert.NotErrorIs(t, err, entities.ErrVersionConflict)
	rosterRepo.AssertNumberOfCalls(t, "Save", 3)
}

func TestRosterManager_StoreErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	session := &entities.Session{ID: "s1", Status: entities.SessionStatusPublished, Capacity: 2, ScheduledStart: time.Now().Add(48 * time.Hour)}
	sessionRepo := new(testhelpers.MockSessionRepository)
	rosterRepo := new(testhelpers.MockRosterRepository)

	sessionRepo.On("GetByID", ctx, "s1").Return(session, nil)
	rosterRepo.On("Load", ctx, "s1").Return(&entities.Roster{SessionID: "s1"}, nil)
	rosterRepo.On("Save", ctx, mock.Anything).Return(int64(0), errors.New("disk full"))

	manager := NewRosterManager(sessionRepo, rosterRepo, nil, RosterConfig{MaxAttempts: 3})

	_, err := manager.Register(ctx, "s1", createTestRegistrant("ann"))
	assert.ErrorContains(t, err, "disk full")
	rosterRepo.AssertNumberOfCalls(t, "Save", 1)
}
