package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtside/database"
	"courtside/domain/entities"

	"github.com/jackc/pgx/v5"
)

// SessionRepository implements interfaces.SessionRepository on Postgres
type SessionRepository struct {
	q queryable
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{q: db.Pool}
}

const sessionColumns = `id, status, capacity, fee_amount, scheduled_start, lock_window_ms,
	equipment_units_used, roster_version, created_at, published_at, closed_at`

func scanSession(row pgx.Row) (*entities.Session, error) {
	var session entities.Session
	var lockWindowMS int64
	err := row.Scan(
		&session.ID,
		&session.Status,
		&session.Capacity,
		&session.FeeAmount,
		&session.ScheduledStart,
		&lockWindowMS,
		&session.EquipmentUnitsUsed,
		&session.RosterVersion,
		&session.CreatedAt,
		&session.PublishedAt,
		&session.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	session.LockWindow = time.Duration(lockWindowMS) * time.Millisecond
	return &session, nil
}

// GetByID retrieves a session, returning nil if none exists
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	session, err := scanSession(r.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return session, nil
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *entities.Session) error {
	query := `
		INSERT INTO sessions (id, status, capacity, fee_amount, scheduled_start, lock_window_ms, published_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, roster_version
	`

	err := r.q.QueryRow(ctx, query,
		session.ID,
		session.Status,
		session.Capacity,
		session.FeeAmount,
		session.ScheduledStart,
		session.LockWindow.Milliseconds(),
		session.PublishedAt,
		session.ClosedAt,
	).Scan(&session.CreatedAt, &session.RosterVersion)
	if isUniqueViolation(err, "sessions_pkey") {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", session.ID, err)
	}
	return nil
}

// UpdateSettings writes the configurable fields if the stored status is unchanged
func (r *SessionRepository) UpdateSettings(ctx context.Context, session *entities.Session) error {
	query := `
		UPDATE sessions
		SET capacity = $3, fee_amount = $4, scheduled_start = $5, lock_window_ms = $6
		WHERE id = $1 AND status = $2
	`

	tag, err := r.q.Exec(ctx, query,
		session.ID,
		session.Status,
		session.Capacity,
		session.FeeAmount,
		session.ScheduledStart,
		session.LockWindow.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", session.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, session.ID, entities.ErrVersionConflict)
	}
	return nil
}

// TransitionStatus moves from -> to and bumps the roster version in the same statement
func (r *SessionRepository) TransitionStatus(ctx context.Context, id string, from, to entities.SessionStatus, at time.Time) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%s -> %s: %w", from, to, entities.ErrInvalidTransition)
	}

	query := `
		UPDATE sessions
		SET status = $3,
			roster_version = roster_version + 1,
			published_at = CASE WHEN $3 = 'published' THEN $4 ELSE published_at END,
			closed_at = CASE WHEN $3 = 'closed' THEN $4 ELSE closed_at END
		WHERE id = $1 AND status = $2
	`

	tag, err := r.q.Exec(ctx, query, id, from, to, at)
	if err != nil {
		return fmt.Errorf("failed to transition session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, id, fmt.Errorf("%s -> %s: %w", from, to, entities.ErrInvalidTransition))
	}
	return nil
}

// AddEquipmentUnits increments the equipment counter and returns the new total
func (r *SessionRepository) AddEquipmentUnits(ctx context.Context, id string, units int) (int, error) {
	var total int
	err := r.q.QueryRow(ctx,
		`UPDATE sessions SET equipment_units_used = equipment_units_used + $2 WHERE id = $1 RETURNING equipment_units_used`,
		id, units,
	).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, entities.ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add equipment units to session %s: %w", id, err)
	}
	return total, nil
}

// missOrConflict distinguishes a missing session from a failed condition after an
// update matched no rows
func (r *SessionRepository) missOrConflict(ctx context.Context, id string, conflict error) error {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check session %s: %w", id, err)
	}
	if !exists {
		return entities.ErrSessionNotFound
	}
	return conflict
}
