package memory

import (
	"context"

	"courtside/domain/entities"
)

// SettingsRepository implements interfaces.SettingsRepository in memory
type SettingsRepository struct {
	store *Store
}

func (r *SettingsRepository) GetCurrentSessionID(ctx context.Context) (string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.currentSessionID, nil
}

func (r *SettingsRepository) SwapCurrentSession(ctx context.Context, expected, next string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.currentSessionID != expected {
		return entities.ErrVersionConflict
	}
	r.store.currentSessionID = next
	return nil
}

func (r *SettingsRepository) GetMaintenance(ctx context.Context) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.maintenance, nil
}

func (r *SettingsRepository) SetMaintenance(ctx context.Context, enabled bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.maintenance = enabled
	return nil
}
