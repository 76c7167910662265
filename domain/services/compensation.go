package services

import (
	"context"
	"errors"
	"time"

	"courtside/domain/entities"
	"courtside/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// resolveOutcome turns an unknown-outcome ledger error into a known one: the applied
// entry if it landed, nil if it did not. Any other error is returned unchanged.
func resolveOutcome(ctx context.Context, ledger interfaces.WalletLedger, err error, timeout time.Duration) (*entities.Transaction, error) {
	var unknown *entities.OutcomeUnknownError
	if !errors.As(err, &unknown) {
		return nil, err
	}

	verifyCtx, cancel := detach(ctx, timeout)
	defer cancel()

	tx, verr := ledger.Verify(verifyCtx, unknown.TransactionID)
	if verr != nil {
		return nil, errors.Join(err, verr)
	}

	log.WithFields(log.Fields{
		"tx_id":   unknown.TransactionID,
		"user_id": unknown.UserID,
		"landed":  tx != nil,
	}).Info("Resolved ledger write with unknown outcome")

	return tx, nil
}

// compensation undoes a debit whose dependent step failed
type compensation struct {
	Operation string
	SessionID string
	Debit     *entities.Transaction
	Reason    entities.TransactionReason
	Cause     error
}

// compensate credits back a debit on a detached context. A failed credit comes back as
// an UnreconciledError that has already been logged and counted.
func compensate(ctx context.Context, ledger interfaces.WalletLedger, metrics interfaces.MetricsRecorder, timeout time.Duration, c compensation) *entities.UnreconciledError {
	amount := -c.Debit.Amount

	fields := log.Fields{
		"operation":  c.Operation,
		"user_id":    c.Debit.UserID,
		"amount":     amount,
		"tx_id":      c.Debit.ID,
		"session_id": c.SessionID,
	}
	log.WithFields(fields).WithError(c.Cause).Warn("Compensating debit after failed step")

	compCtx, cancel := detach(ctx, timeout)
	defer cancel()

	opts := []interfaces.LedgerOption{interfaces.WithMetadata("compensates", c.Debit.ID)}
	if c.SessionID != "" {
		opts = append(opts, interfaces.WithSession(c.SessionID))
	}

	_, err := ledger.Credit(compCtx, c.Debit.UserID, amount, c.Reason, opts...)
	if err != nil {
		// Retry cannot double-apply a credit that resolves as landed
		if landed, verr := resolveOutcome(ctx, ledger, err, timeout); verr == nil && landed != nil {
			err = nil
		}
	}
	metrics.RecordCompensation(ctx, c.Operation, err == nil)
	if err == nil {
		return nil
	}

	metrics.RecordUnreconciled(ctx, c.Operation)
	unreconciled := &entities.UnreconciledError{
		Operation:     c.Operation,
		UserID:        c.Debit.UserID,
		Amount:        amount,
		TransactionID: c.Debit.ID,
		SessionID:     c.SessionID,
		Cause:         errors.Join(c.Cause, err),
	}
	log.WithFields(fields).WithError(unreconciled.Cause).Error("Compensation failed, manual reconciliation required")
	return unreconciled
}
