package memory

import (
	"context"

	"courtside/domain/entities"
)

// ArchiveRepository implements interfaces.ArchiveRepository in memory
type ArchiveRepository struct {
	store *Store
}

func (r *ArchiveRepository) Create(ctx context.Context, archive *entities.SessionArchive) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.archives[archive.Key]; exists {
		return entities.ErrArchiveExists
	}
	r.store.archives[archive.Key] = copyArchive(archive)
	r.store.archiveOrder = append(r.store.archiveOrder, archive.Key)
	return nil
}

func (r *ArchiveRepository) GetByKey(ctx context.Context, key string) (*entities.SessionArchive, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	archive, ok := r.store.archives[key]
	if !ok {
		return nil, nil
	}
	return copyArchive(archive), nil
}

func (r *ArchiveRepository) GetBySessionID(ctx context.Context, sessionID string) (*entities.SessionArchive, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, archive := range r.store.archives {
		if archive.SessionID == sessionID {
			return copyArchive(archive), nil
		}
	}
	return nil, nil
}

func (r *ArchiveRepository) List(ctx context.Context, limit int) ([]*entities.SessionArchive, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	keys := r.store.archiveOrder
	if limit <= 0 || limit > len(keys) {
		limit = len(keys)
	}

	result := make([]*entities.SessionArchive, 0, limit)
	for i := len(keys) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, copyArchive(r.store.archives[keys[i]]))
	}
	return result, nil
}
