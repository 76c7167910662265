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

// ArchiveRepository implements interfaces.ArchiveRepository on Postgres. The roster
// snapshot is stored as JSONB.
type ArchiveRepository struct {
	q queryable
}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository(db *database.DB) *ArchiveRepository {
	return &ArchiveRepository{q: db.Pool}
}

const archiveColumns = `key, session_id, date, capacity, fee_amount, registrants, active_count, paid_active_count,
	courts_used, equipment_units_used, income, expense, net, archived_at`

func scanArchive(row pgx.Row) (*entities.SessionArchive, error) {
	var archive entities.SessionArchive
	var registrantsJSON []byte
	err := row.Scan(
		&archive.Key,
		&archive.SessionID,
		&archive.Date,
		&archive.Capacity,
		&archive.FeeAmount,
		&registrantsJSON,
		&archive.ActiveCount,
		&archive.PaidActiveCount,
		&archive.CourtsUsed,
		&archive.EquipmentUnitsUsed,
		&archive.Income,
		&archive.Expense,
		&archive.Net,
		&archive.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(registrantsJSON, &archive.Registrants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archived roster: %w", err)
	}
	return &archive, nil
}

// Create inserts an archive. ErrArchiveExists if the key is taken.
func (r *ArchiveRepository) Create(ctx context.Context, archive *entities.SessionArchive) error {
	registrants := archive.Registrants
	if registrants == nil {
		registrants = []*entities.Registrant{}
	}
	registrantsJSON, err := json.Marshal(registrants)
	if err != nil {
		return fmt.Errorf("failed to marshal archived roster: %w", err)
	}

	query := `
		INSERT INTO session_archives (` + archiveColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.q.Exec(ctx, query,
		archive.Key,
		archive.SessionID,
		archive.Date,
		archive.Capacity,
		archive.FeeAmount,
		registrantsJSON,
		archive.ActiveCount,
		archive.PaidActiveCount,
		archive.CourtsUsed,
		archive.EquipmentUnitsUsed,
		archive.Income,
		archive.Expense,
		archive.Net,
		archive.ArchivedAt,
	)
	if isUniqueViolation(err, "session_archives_pkey") {
		return fmt.Errorf("%s: %w", archive.Key, entities.ErrArchiveExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", archive.Key, err)
	}
	return nil
}

// GetByKey retrieves an archive, returning nil if none exists
func (r *ArchiveRepository) GetByKey(ctx context.Context, key string) (*entities.SessionArchive, error) {
	return r.getOne(ctx, `SELECT `+archiveColumns+` FROM session_archives WHERE key = $1`, key)
}

// GetBySessionID retrieves the archive of a session, returning nil if none exists
func (r *ArchiveRepository) GetBySessionID(ctx context.Context, sessionID string) (*entities.SessionArchive, error) {
	return r.getOne(ctx, `SELECT `+archiveColumns+` FROM session_archives WHERE session_id = $1`, sessionID)
}

// List returns archives, most recent first. A limit of zero returns all.
func (r *ArchiveRepository) List(ctx context.Context, limit int) ([]*entities.SessionArchive, error) {
	query := `SELECT ` + archiveColumns + ` FROM session_archives ORDER BY archived_at DESC, key DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query archives: %w", err)
	}
	defer rows.Close()

	var archives []*entities.SessionArchive
	for rows.Next() {
		archive, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archive: %w", err)
		}
		archives = append(archives, archive)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archives: %w", err)
	}
	return archives, nil
}

func (r *ArchiveRepository) getOne(ctx context.Context, query string, arg string) (*entities.SessionArchive, error) {
	archive, err := scanArchive(r.q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archive %s: %w", arg, err)
	}
	return archive, nil
}
