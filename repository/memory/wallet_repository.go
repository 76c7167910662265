package memory

import (
	"context"
	"time"

	"courtside/domain/entities"
)

// WalletRepository implements interfaces.WalletRepository in memory. A wallet is the
// user's balance together with their transaction list.
type WalletRepository struct {
	store *Store
}

func (r *WalletRepository) ApplyTransaction(ctx context.Context, tx *entities.Transaction, floor *int64) (*entities.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing, ok := r.store.transactions[tx.ID]; ok {
		return copyTransaction(existing), nil
	}

	user, ok := r.store.users[tx.UserID]
	if !ok {
		return nil, entities.ErrUserNotFound
	}

	newBalance := user.Balance + tx.Amount
	if floor != nil && newBalance < *floor {
		return nil, entities.ErrInsufficientFunds
	}

	stored := copyTransaction(tx)
	stored.BalanceBefore = user.Balance
	stored.BalanceAfter = newBalance
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	user.Balance = newBalance
	user.UpdatedAt = stored.CreatedAt
	r.store.transactions[stored.ID] = stored
	r.store.txByUser[stored.UserID] = append(r.store.txByUser[stored.UserID], stored.ID)

	return copyTransaction(stored), nil
}

func (r *WalletRepository) GetTransaction(ctx context.Context, id string) (*entities.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tx, ok := r.store.transactions[id]
	if !ok {
		return nil, nil
	}
	return copyTransaction(tx), nil
}

func (r *WalletRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := r.store.txByUser[userID]
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}

	result := make([]*entities.Transaction, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, copyTransaction(r.store.transactions[ids[i]]))
	}
	return result, nil
}

func (r *WalletRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var sum int64
	for _, id := range r.store.txByUser[userID] {
		sum += r.store.transactions[id].Amount
	}
	return sum, nil
}
