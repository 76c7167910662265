package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"courtside/database"
	"courtside/domain/entities"

	"github.com/jackc/pgx/v5"
)

// WalletRepository implements interfaces.WalletRepository on Postgres. The user row
// is locked for the duration of each write so the balance and the log move together.
type WalletRepository struct {
	db *database.DB
	q  queryable
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *database.DB) *WalletRepository {
	return &WalletRepository{db: db, q: db.Pool}
}

const transactionColumns = `id, user_id, amount, reason, session_id, balance_before, balance_after, metadata, created_at`

func scanTransaction(row pgx.Row) (*entities.Transaction, error) {
	var tx entities.Transaction
	var metadataJSON []byte
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Amount,
		&tx.Reason,
		&tx.SessionID,
		&tx.BalanceBefore,
		&tx.BalanceAfter,
		&metadataJSON,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
		}
	}
	return &tx, nil
}

// ApplyTransaction moves the balance and appends the entry in one database transaction
func (r *WalletRepository) ApplyTransaction(ctx context.Context, tx *entities.Transaction, floor *int64) (*entities.Transaction, error) {
	var metadataJSON []byte
	if tx.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(tx.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transaction metadata: %w", err)
		}
	}

	var stored *entities.Transaction
	err := r.db.WithTransaction(ctx, func(dbTx pgx.Tx) error {
		var balance int64
		err := dbTx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, tx.UserID).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return entities.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock user %s: %w", tx.UserID, err)
		}

		// Checked under the row lock so a retried id can never apply twice
		existing, err := getTransaction(ctx, dbTx, tx.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			stored = existing
			return nil
		}

		newBalance := balance + tx.Amount
		if floor != nil && newBalance < *floor {
			return entities.ErrInsufficientFunds
		}

		query := `
			INSERT INTO transactions (id, user_id, amount, reason, session_id, balance_before, balance_after, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING ` + transactionColumns
		stored, err = scanTransaction(dbTx.QueryRow(ctx, query,
			tx.ID,
			tx.UserID,
			tx.Amount,
			tx.Reason,
			tx.SessionID,
			balance,
			newBalance,
			metadataJSON,
		))
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
		}

		if _, err := dbTx.Exec(ctx, `UPDATE users SET balance = $2, updated_at = NOW() WHERE id = $1`, tx.UserID, newBalance); err != nil {
			return fmt.Errorf("failed to update balance for user %s: %w", tx.UserID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// GetTransaction retrieves a transaction by id, returning nil if none exists
func (r *WalletRepository) GetTransaction(ctx context.Context, id string) (*entities.Transaction, error) {
	return getTransaction(ctx, r.q, id)
}

func getTransaction(ctx context.Context, q queryable, id string) (*entities.Transaction, error) {
	tx, err := scanTransaction(q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return tx, nil
}

// GetByUser returns the user's transactions, newest first. A limit of zero returns all.
func (r *WalletRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY seq DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var txs []*entities.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// SumByUser returns the sum of all the user's transaction amounts
func (r *WalletRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM transactions WHERE user_id = $1`, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum transactions for user %s: %w", userID, err)
	}
	return sum, nil
}
