package entities

import (
	"errors"
	"time"
)

// Transaction is one append-only ledger entry
type Transaction struct {
	ID            string            `db:"id"`
	UserID        string            `db:"user_id"`
	Amount        int64             `db:"amount"` // Signed: negative for debits
	Reason        TransactionReason `db:"reason"`
	SessionID     *string           `db:"session_id"`
	BalanceBefore int64             `db:"balance_before"`
	BalanceAfter  int64             `db:"balance_after"`
	Metadata      map[string]any    `db:"metadata"`
	CreatedAt     time.Time         `db:"created_at"`
}

// IsDebit returns true if the entry reduced the balance
func (t *Transaction) IsDebit() bool {
	return t.Amount < 0
}

// IsCredit returns true if the entry increased the balance
func (t *Transaction) IsCredit() bool {
	return t.Amount > 0
}

// Validate performs basic validation on the entry after it has been applied
func (t *Transaction) Validate() error {
	if t.Amount == 0 {
		return errors.New("transaction amount cannot be zero")
	}
	if t.BalanceAfter != t.BalanceBefore+t.Amount {
		return errors.New("balance calculation is inconsistent")
	}
	return nil
}

// SumAmounts returns the net of a set of entries
func SumAmounts(txs []*Transaction) int64 {
	var total int64
	for _, tx := range txs {
		total += tx.Amount
	}
	return total
}
