package application

import (
	"context"
	"testing"

	"courtside/config"
	"courtside/domain/entities"
	"courtside/repository/memory"

	"github.com/stretchr/testify/require"
)

// newTestServices wires the core over a fresh in-memory store
func newTestServices(t *testing.T) *Services {
	t.Helper()
	svc, err := NewServices(memory.NewStore(), nil, nil, config.NewTestConfig())
	require.NoError(t, err)
	return svc
}

// createTestUser stores an active user and funds them through the ledger
func createTestUser(t *testing.T, svc *Services, id string, role entities.Role, balance int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.Store.UserRepository().Create(ctx, &entities.User{
		ID:          id,
		DisplayName: id,
		Role:        role,
		Active:      true,
	}))
	if balance > 0 {
		_, err := svc.Ledger.Credit(ctx, id, balance, entities.ReasonTopUp)
		require.NoError(t, err)
	}
}
