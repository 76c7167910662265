package repository

import (
	"context"
	"errors"
	"fmt"

	"courtside/database"
	"courtside/domain/entities"

	"github.com/jackc/pgx/v5"
)

// RosterRepository implements interfaces.RosterRepository on Postgres. The roster
// version is the session row's roster_version column, so a status transition also
// invalidates in-flight roster writes.
type RosterRepository struct {
	db *database.DB
}

// NewRosterRepository creates a new roster repository
func NewRosterRepository(db *database.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

const registrantColumns = `id, session_id, owner_user_id, display_name, kind, position, paid, created_at`

func scanRegistrant(row pgx.Row) (*entities.Registrant, error) {
	var reg entities.Registrant
	err := row.Scan(
		&reg.ID,
		&reg.SessionID,
		&reg.OwnerUserID,
		&reg.DisplayName,
		&reg.Kind,
		&reg.Position,
		&reg.Paid,
		&reg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// Load reads the version and the entries from one snapshot
func (r *RosterRepository) Load(ctx context.Context, sessionID string) (*entities.Roster, error) {
	roster := &entities.Roster{SessionID: sessionID}

	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := r.db.WithTransactionOptions(ctx, opts, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT roster_version FROM sessions WHERE id = $1`, sessionID).Scan(&roster.Version)
		if errors.Is(err, pgx.ErrNoRows) {
			return entities.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read roster version for session %s: %w", sessionID, err)
		}

		rows, err := tx.Query(ctx, `SELECT `+registrantColumns+` FROM registrants WHERE session_id = $1 ORDER BY position`, sessionID)
		if err != nil {
			return fmt.Errorf("failed to query roster for session %s: %w", sessionID, err)
		}
		defer rows.Close()

		for rows.Next() {
			reg, err := scanRegistrant(rows)
			if err != nil {
				return fmt.Errorf("failed to scan registrant: %w", err)
			}
			roster.Registrants = append(roster.Registrants, reg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return roster, nil
}

// Save bumps the version conditionally, then applies removals, position updates and
// inserts. The deferred position constraint is checked at commit.
func (r *RosterRepository) Save(ctx context.Context, change *entities.RosterChange) (int64, error) {
	var version int64
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE sessions SET roster_version = roster_version + 1 WHERE id = $1 AND roster_version = $2 RETURNING roster_version`,
			change.SessionID, change.ExpectedVersion,
		).Scan(&version)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, change.SessionID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check session %s: %w", change.SessionID, err)
			}
			if !exists {
				return entities.ErrSessionNotFound
			}
			return entities.ErrVersionConflict
		}
		if err != nil {
			return fmt.Errorf("failed to bump roster version for session %s: %w", change.SessionID, err)
		}

		if len(change.Removed) > 0 {
			_, err := tx.Exec(ctx, `DELETE FROM registrants WHERE session_id = $1 AND id = ANY($2)`, change.SessionID, change.Removed)
			if err != nil {
				return fmt.Errorf("failed to remove registrants: %w", err)
			}
		}

		batch := &pgx.Batch{}
		for _, reg := range change.Updated {
			batch.Queue(`UPDATE registrants SET position = $3, paid = $4 WHERE session_id = $1 AND id = $2`,
				change.SessionID, reg.ID, reg.Position, reg.Paid)
		}
		for _, reg := range change.Inserted {
			batch.Queue(`
				INSERT INTO registrants (id, session_id, owner_user_id, display_name, kind, position, paid)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				reg.ID, change.SessionID, reg.OwnerUserID, reg.DisplayName, reg.Kind, reg.Position, reg.Paid)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				if isUniqueViolation(err, "registrants_session_name_key") {
					return fmt.Errorf("%w: %v", entities.ErrDuplicateName, err)
				}
				return fmt.Errorf("failed to write registrants: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}
