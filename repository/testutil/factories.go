package testutil

import (
	"time"

	"courtside/domain/entities"

	"github.com/google/uuid"
)

// CreateTestUser creates an active player with a zero balance
func CreateTestUser(id string) *entities.User {
	return &entities.User{
		ID:          id,
		DisplayName: id,
		Role:        entities.RolePlayer,
		Active:      true,
	}
}

// CreateTestSession creates a draft session starting in two days
func CreateTestSession(capacity int, fee int64) *entities.Session {
	return &entities.Session{
		ID:             uuid.NewString(),
		Status:         entities.SessionStatusDraft,
		Capacity:       capacity,
		FeeAmount:      fee,
		ScheduledStart: time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second),
		LockWindow:     time.Hour,
	}
}

// CreateTestRegistrant creates an unpaid self entry for the owner
func CreateTestRegistrant(ownerID string, position int) *entities.Registrant {
	return &entities.Registrant{
		ID:          uuid.NewString(),
		OwnerUserID: ownerID,
		DisplayName: ownerID,
		Kind:        entities.RegistrantKindSelf,
		Position:    position,
	}
}

// CreateTestTransaction creates an unapplied ledger entry
func CreateTestTransaction(userID string, amount int64, reason entities.TransactionReason) *entities.Transaction {
	return &entities.Transaction{
		ID:     uuid.NewString(),
		UserID: userID,
		Amount: amount,
		Reason: reason,
	}
}
