package memory

import (
	"context"
	"fmt"
	"time"

	"courtside/domain/entities"
)

// SessionRepository implements interfaces.SessionRepository in memory
type SessionRepository struct {
	store *Store
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(session), nil
}

func (r *SessionRepository) Create(ctx context.Context, session *entities.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	r.store.sessions[session.ID] = copySession(session)
	r.store.rosters[session.ID] = nil
	return nil
}

func (r *SessionRepository) UpdateSettings(ctx context.Context, session *entities.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.sessions[session.ID]
	if !ok {
		return entities.ErrSessionNotFound
	}
	if stored.Status != session.Status {
		return entities.ErrVersionConflict
	}

	stored.Capacity = session.Capacity
	stored.FeeAmount = session.FeeAmount
	stored.ScheduledStart = session.ScheduledStart
	stored.LockWindow = session.LockWindow
	return nil
}

func (r *SessionRepository) TransitionStatus(ctx context.Context, id string, from, to entities.SessionStatus, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.sessions[id]
	if !ok {
		return entities.ErrSessionNotFound
	}
	if stored.Status != from || !from.CanTransitionTo(to) {
		return fmt.Errorf("%s -> %s (stored %s): %w", from, to, stored.Status, entities.ErrInvalidTransition)
	}

	stored.Status = to
	stored.RosterVersion++
	switch to {
	case entities.SessionStatusPublished:
		stored.PublishedAt = &at
	case entities.SessionStatusClosed:
		stored.ClosedAt = &at
	}
	return nil
}

func (r *SessionRepository) AddEquipmentUnits(ctx context.Context, id string, units int) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.sessions[id]
	if !ok {
		return 0, entities.ErrSessionNotFound
	}
	stored.EquipmentUnitsUsed += units
	return stored.EquipmentUnitsUsed, nil
}
