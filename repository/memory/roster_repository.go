package memory

import (
	"context"
	"fmt"
	"sort"

	"courtside/domain/entities"
)

// RosterRepository implements interfaces.RosterRepository in memory. The roster
// version lives on the session document.
type RosterRepository struct {
	store *Store
}

func (r *RosterRepository) Load(ctx context.Context, sessionID string) (*entities.Roster, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	session, ok := r.store.sessions[sessionID]
	if !ok {
		return nil, entities.ErrSessionNotFound
	}

	registrants := copyRegistrants(r.store.rosters[sessionID])
	sort.SliceStable(registrants, func(i, j int) bool {
		return registrants[i].Position < registrants[j].Position
	})

	return &entities.Roster{
		SessionID:   sessionID,
		Version:     session.RosterVersion,
		Registrants: registrants,
	}, nil
}

func (r *RosterRepository) Save(ctx context.Context, change *entities.RosterChange) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[change.SessionID]
	if !ok {
		return 0, entities.ErrSessionNotFound
	}
	if session.RosterVersion != change.ExpectedVersion {
		return 0, entities.ErrVersionConflict
	}

	removed := make(map[string]bool, len(change.Removed))
	for _, id := range change.Removed {
		removed[id] = true
	}
	updated := make(map[string]*entities.Registrant, len(change.Updated))
	for _, reg := range change.Updated {
		updated[reg.ID] = reg
	}

	next := make([]*entities.Registrant, 0, len(r.store.rosters[change.SessionID])+len(change.Inserted))
	for _, reg := range r.store.rosters[change.SessionID] {
		if removed[reg.ID] {
			continue
		}
		cp := *reg
		if u, ok := updated[reg.ID]; ok {
			cp.Position = u.Position
			cp.Paid = u.Paid
		}
		next = append(next, &cp)
	}
	for _, reg := range change.Inserted {
		cp := *reg
		cp.SessionID = change.SessionID
		next = append(next, &cp)
	}

	if err := checkUniquePositions(next); err != nil {
		return 0, err
	}

	r.store.rosters[change.SessionID] = next
	session.RosterVersion++
	return session.RosterVersion, nil
}

// checkUniquePositions mirrors the unique (session_id, position) constraint
func checkUniquePositions(regs []*entities.Registrant) error {
	seen := make(map[int]string, len(regs))
	for _, reg := range regs {
		if other, dup := seen[reg.Position]; dup {
			return fmt.Errorf("position %d held by %s and %s", reg.Position, other, reg.ID)
		}
		seen[reg.Position] = reg.ID
	}
	return nil
}
