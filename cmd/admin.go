package cmd

import (
	"context"
	"errors"
	"fmt"

	"courtside/domain/entities"
	"courtside/domain/interfaces"
	"courtside/infrastructure/auth"

	log "github.com/sirupsen/logrus"
)

// AddUser creates a user with an argon2id credential and an optional opening balance
func (a *App) AddUser(ctx context.Context, id, displayName string, role entities.Role, secret string, openingBalance int64) (*entities.User, error) {
	user := &entities.User{
		ID:          id,
		DisplayName: displayName,
		Role:        role,
		Active:      true,
	}
	if secret != "" {
		hash, err := auth.HashPassword(secret, auth.DefaultParams)
		if err != nil {
			return nil, err
		}
		user.CredentialRef = hash
	}

	if err := a.Services.Store.UserRepository().Create(ctx, user); err != nil {
		return nil, err
	}

	if openingBalance > 0 {
		tx, err := a.Services.Coordinator.TopUp(ctx, entities.TopUpRequest{
			UserID: id,
			Amount: openingBalance,
			Note:   "opening balance",
		})
		if err != nil {
			return nil, fmt.Errorf("user created but opening balance failed: %w", err)
		}
		user.Balance = tx.BalanceAfter
	}

	log.WithFields(log.Fields{
		"userID":  id,
		"role":    role,
		"balance": user.Balance,
	}).Info("User created")
	return user, nil
}

// AdjustBalance applies a signed admin correction
func (a *App) AdjustBalance(ctx context.Context, userID string, amount int64, note string) (*entities.Transaction, error) {
	return a.Services.Coordinator.AdjustBalance(ctx, entities.AdjustmentRequest{
		UserID: userID,
		Amount: amount,
		Note:   note,
	})
}

// Reconcile reports drift for one user, or for every user when userID is empty
func (a *App) Reconcile(ctx context.Context, userID string) ([]*interfaces.BalanceReport, error) {
	ids := []string{userID}
	if userID == "" {
		users, err := a.Services.Store.UserRepository().GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		ids = ids[:0]
		for _, u := range users {
			ids = append(ids, u.ID)
		}
	}

	reports := make([]*interfaces.BalanceReport, 0, len(ids))
	for _, id := range ids {
		report, err := a.Services.Ledger.Reconcile(ctx, id)
		if err != nil {
			return nil, err
		}
		if report.Drift() != 0 {
			log.WithFields(log.Fields{
				"userID": id,
				"cached": report.CachedBalance,
				"ledger": report.LedgerSum,
				"drift":  report.Drift(),
			}).Error("Balance drift detected")
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// CloseSession closes a session, or writes the missing archive of one already closed
func (a *App) CloseSession(ctx context.Context, sessionID string) (*entities.SessionArchive, error) {
	if sessionID == "" {
		current, err := a.Services.Lifecycle.Current(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = current.ID
	}

	result, err := a.Services.Lifecycle.Close(ctx, sessionID)
	if errors.Is(err, entities.ErrSessionClosed) {
		log.WithField("sessionID", sessionID).Info("Session already closed, checking its archive")
		return a.Services.Lifecycle.ArchiveSession(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return result.Archive, nil
}
