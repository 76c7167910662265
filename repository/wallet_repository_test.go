package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"courtside/domain/entities"
	"courtside/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletRepository(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	wallets := NewWalletRepository(testDB.DB)
	ctx := context.Background()

	t.Run("apply credit and debit", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, testutil.CreateTestUser("ann")))

		credit := testutil.CreateTestTransaction("ann", 500, entities.ReasonTopUp)
		credit.Metadata = map[string]any{"note": "cash"}
		stored, err := wallets.ApplyTransaction(ctx, credit, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stored.BalanceBefore)
		assert.Equal(t, int64(500), stored.BalanceAfter)
		assert.Equal(t, "cash", stored.Metadata["note"])
		assert.False(t, stored.CreatedAt.IsZero())

		floor := int64(10)
		_, err = wallets.ApplyTransaction(ctx, testutil.CreateTestTransaction("ann", -495, entities.ReasonRegistration), &floor)
		assert.ErrorIs(t, err, entities.ErrInsufficientFunds)

		debit, err := wallets.ApplyTransaction(ctx, testutil.CreateTestTransaction("ann", -490, entities.ReasonRegistration), &floor)
		require.NoError(t, err)
		assert.Equal(t, int64(10), debit.BalanceAfter)

		user, err := users.GetByID(ctx, "ann")
		require.NoError(t, err)
		assert.Equal(t, int64(10), user.Balance)

		sum, err := wallets.SumByUser(ctx, "ann")
		require.NoError(t, err)
		assert.Equal(t, user.Balance, sum)
	})

	t.Run("replayed id is not applied twice", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, testutil.CreateTestUser("bob")))

		tx := testutil.CreateTestTransaction("bob", 100, entities.ReasonTopUp)
		first, err := wallets.ApplyTransaction(ctx, tx, nil)
		require.NoError(t, err)
		second, err := wallets.ApplyTransaction(ctx, tx, nil)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.BalanceAfter, second.BalanceAfter)

		user, err := users.GetByID(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, int64(100), user.Balance)

		found, err := wallets.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, entities.ReasonTopUp, found.Reason)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := wallets.ApplyTransaction(ctx, testutil.CreateTestTransaction("ghost", 5, entities.ReasonTopUp), nil)
		assert.ErrorIs(t, err, entities.ErrUserNotFound)

		missing, err := wallets.GetTransaction(ctx, "never-written")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("history is newest first", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, testutil.CreateTestUser("cat")))

		var ids []string
		for i := 0; i < 3; i++ {
			tx, err := wallets.ApplyTransaction(ctx, testutil.CreateTestTransaction("cat", 10, entities.ReasonTopUp), nil)
			require.NoError(t, err)
			ids = append(ids, tx.ID)
		}

		txs, err := wallets.GetByUser(ctx, "cat", 2)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, ids[2], txs[0].ID)
		assert.Equal(t, ids[1], txs[1].ID)

		all, err := wallets.GetByUser(ctx, "cat", 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("concurrent debits respect the floor", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, testutil.CreateTestUser("dan")))
		_, err := wallets.ApplyTransaction(ctx, testutil.CreateTestTransaction("dan", 1000, entities.ReasonTopUp), nil)
		require.NoError(t, err)

		floor := int64(0)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tx := testutil.CreateTestTransaction("dan", -100, entities.ReasonRegistration)
				tx.ID = fmt.Sprintf("dan-debit-%d", i)
				_, _ = wallets.ApplyTransaction(ctx, tx, &floor)
			}(i)
		}
		wg.Wait()

		user, err := users.GetByID(ctx, "dan")
		require.NoError(t, err)
		assert.Equal(t, int64(0), user.Balance)

		txs, err := wallets.GetByUser(ctx, "dan", 0)
		require.NoError(t, err)
		assert.Len(t, txs, 11)
	})
}
