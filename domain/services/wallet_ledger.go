package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtside/domain/entities"
	"courtside/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultMinimumBalance is the floor an ordinary debit may not cross
const DefaultMinimumBalance int64 = 10

// LedgerConfig tunes the wallet ledger
type LedgerConfig struct {
	MinimumBalance      int64
	MaxRetries          int           // Transient store error retries per write
	CompensationTimeout time.Duration // Budget for a rollback after the caller gave up
}

// walletLedger implements interfaces.WalletLedger on top of the wallet repository
type walletLedger struct {
	userRepo   interfaces.UserRepository
	walletRepo interfaces.WalletRepository
	metrics    interfaces.MetricsRecorder
	config     LedgerConfig
	now        func() time.Time
}

// NewWalletLedger creates a new wallet ledger
func NewWalletLedger(
	userRepo interfaces.UserRepository,
	walletRepo interfaces.WalletRepository,
	metrics interfaces.MetricsRecorder,
	config LedgerConfig,
) interfaces.WalletLedger {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if config.CompensationTimeout <= 0 {
		config.CompensationTimeout = 10 * time.Second
	}
	return &walletLedger{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		metrics:    metrics,
		config:     config,
		now:        time.Now,
	}
}

// Debit removes amount from the user's balance
func (l *walletLedger) Debit(ctx context.Context, userID string, amount int64, reason entities.TransactionReason, opts ...interfaces.LedgerOption) (*entities.Transaction, error) {
	if amount < 0 {
		return nil, entities.ErrInvalidAmount
	}
	if amount == 0 {
		return nil, nil
	}

	options := buildLedgerOptions(opts)
	var floor *int64
	if !options.AdminCorrection {
		minimum := l.config.MinimumBalance
		floor = &minimum
	}

	return l.apply(ctx, userID, -amount, reason, floor, options)
}

// Credit adds amount to the user's balance
func (l *walletLedger) Credit(ctx context.Context, userID string, amount int64, reason entities.TransactionReason, opts ...interfaces.LedgerOption) (*entities.Transaction, error) {
	if amount < 0 {
		return nil, entities.ErrInvalidAmount
	}
	if amount == 0 {
		return nil, nil
	}

	return l.apply(ctx, userID, amount, reason, nil, buildLedgerOptions(opts))
}

// Transfer debits the sender then credits the recipient. The two legs are separate
// writes; a failed credit is undone with a rollback credit to the sender.
func (l *walletLedger) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64, opts ...interfaces.LedgerOption) (*interfaces.TransferResult, error) {
	if amount <= 0 {
		return nil, entities.ErrInvalidAmount
	}
	if fromUserID == toUserID {
		return nil, fmt.Errorf("cannot transfer to the same wallet: %w", entities.ErrTransferNotAllowed)
	}

	outOpts := append([]interfaces.LedgerOption{interfaces.WithMetadata("transfer_to", toUserID)}, opts...)
	debit, err := l.Debit(ctx, fromUserID, amount, entities.ReasonTransferOut, outOpts...)
	if err != nil {
		landed, verr := l.resolveUnknown(ctx, err)
		if verr != nil {
			return nil, fmt.Errorf("failed to debit sender: %w", verr)
		}
		if landed == nil {
			return nil, fmt.Errorf("failed to debit sender: %w", err)
		}
		debit = landed
	}

	inOpts := append([]interfaces.LedgerOption{
		interfaces.WithMetadata("transfer_from", fromUserID),
		interfaces.WithMetadata("debit_transaction", debit.ID),
	}, opts...)
	credit, err := l.Credit(ctx, toUserID, amount, entities.ReasonTransferIn, inOpts...)
	if err == nil {
		return &interfaces.TransferResult{Debit: debit, Credit: credit}, nil
	}

	// The credit may still have landed
	if landed, verr := l.resolveUnknown(ctx, err); verr == nil && landed != nil {
		return &interfaces.TransferResult{Debit: debit, Credit: landed}, nil
	}

	if unreconciled := compensate(ctx, l, l.metrics, l.config.CompensationTimeout, compensation{
		Operation: "transfer",
		Debit:     debit,
		Reason:    entities.ReasonRollback,
		Cause:     err,
	}); unreconciled != nil {
		return nil, unreconciled
	}

	return nil, fmt.Errorf("failed to credit recipient: %w", err)
}

// Verify re-reads the log for a transaction id
func (l *walletLedger) Verify(ctx context.Context, transactionID string) (*entities.Transaction, error) {
	tx, err := retryTransient(ctx, l.config.MaxRetries, func() (*entities.Transaction, error) {
		return l.walletRepo.GetTransaction(ctx, transactionID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify transaction %s: %w", transactionID, err)
	}
	return tx, nil
}

// Reconcile compares the cached balance with the log
func (l *walletLedger) Reconcile(ctx context.Context, userID string) (*interfaces.BalanceReport, error) {
	user, err := l.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, entities.ErrUserNotFound
	}

	sum, err := l.walletRepo.SumByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}

	return &interfaces.BalanceReport{
		UserID:        userID,
		CachedBalance: user.Balance,
		LedgerSum:     sum,
	}, nil
}

// History returns recent transactions
func (l *walletLedger) History(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	txs, err := l.walletRepo.GetByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return txs, nil
}

// apply writes one entry. The id is fixed before the first attempt so a retry after a
// lost acknowledgement finds the committed entry instead of writing a second one.
func (l *walletLedger) apply(ctx context.Context, userID string, amount int64, reason entities.TransactionReason, floor *int64, options interfaces.LedgerOptions) (*entities.Transaction, error) {
	tx := &entities.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		SessionID: options.SessionID,
		Metadata:  options.Metadata,
		CreatedAt: l.now(),
	}

	applied, err := retryTransient(ctx, l.config.MaxRetries, func() (*entities.Transaction, error) {
		return l.walletRepo.ApplyTransaction(ctx, tx, floor)
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, err
		}
		return nil, &entities.OutcomeUnknownError{
			TransactionID: tx.ID,
			UserID:        userID,
			Amount:        amount,
			Cause:         err,
		}
	}

	l.metrics.RecordLedgerTransaction(ctx, reason, amount)
	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
		"reason":  reason,
		"tx_id":   applied.ID,
		"balance": applied.BalanceAfter,
	}).Debug("Applied ledger transaction")

	return applied, nil
}

// resolveUnknown turns an OutcomeUnknownError into the applied entry, or nil if the
// write never landed. Other errors pass through.
func (l *walletLedger) resolveUnknown(ctx context.Context, err error) (*entities.Transaction, error) {
	return resolveOutcome(ctx, l, err, l.config.CompensationTimeout)
}

func isBusinessError(err error) bool {
	return errors.Is(err, entities.ErrInsufficientFunds) ||
		errors.Is(err, entities.ErrInvalidAmount) ||
		errors.Is(err, entities.ErrUserNotFound) ||
		errors.Is(err, entities.ErrUserInactive)
}

func buildLedgerOptions(opts []interfaces.LedgerOption) interfaces.LedgerOptions {
	var options interfaces.LedgerOptions
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
