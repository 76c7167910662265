package repository

import (
	"context"
	"fmt"

	"courtside/database"
	"courtside/domain/entities"
)

// SettingsRepository implements interfaces.SettingsRepository on the single settings row
type SettingsRepository struct {
	q queryable
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{q: db.Pool}
}

func (r *SettingsRepository) GetCurrentSessionID(ctx context.Context) (string, error) {
	var id string
	err := r.q.QueryRow(ctx, `SELECT COALESCE(current_session_id, '') FROM settings WHERE id`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to read current session: %w", err)
	}
	return id, nil
}

func (r *SettingsRepository) SwapCurrentSession(ctx context.Context, expected, next string) error {
	query := `
		UPDATE settings
		SET current_session_id = NULLIF($2, '')
		WHERE id AND COALESCE(current_session_id, '') = $1
	`
	tag, err := r.q.Exec(ctx, query, expected, next)
	if err != nil {
		return fmt.Errorf("failed to swap current session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrVersionConflict
	}
	return nil
}

func (r *SettingsRepository) GetMaintenance(ctx context.Context) (bool, error) {
	var enabled bool
	if err := r.q.QueryRow(ctx, `SELECT maintenance FROM settings WHERE id`).Scan(&enabled); err != nil {
		return false, fmt.Errorf("failed to read maintenance flag: %w", err)
	}
	return enabled, nil
}

func (r *SettingsRepository) SetMaintenance(ctx context.Context, enabled bool) error {
	if _, err := r.q.Exec(ctx, `UPDATE settings SET maintenance = $1 WHERE id`, enabled); err != nil {
		return fmt.Errorf("failed to set maintenance flag: %w", err)
	}
	return nil
}
