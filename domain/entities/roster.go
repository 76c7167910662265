package entities

import (
	"fmt"
	"sort"
)

// Roster is the ordered registrant list of one session together with the version used
// for conditional writes
type Roster struct {
	SessionID   string
	Version     int64
	Registrants []*Registrant // Ordered by position
}

// RosterChange is a conditional write against a roster. It applies only if the stored
// version still equals ExpectedVersion, and bumps the version by one.
type RosterChange struct {
	SessionID       string
	ExpectedVersion int64
	Inserted        []*Registrant
	Removed         []string
	Updated         []*Registrant // Entries whose position or paid flag changed
}

// IsEmpty reports whether the change would write nothing
func (c *RosterChange) IsEmpty() bool {
	return len(c.Inserted) == 0 && len(c.Removed) == 0 && len(c.Updated) == 0
}

// Count returns the number of registrants
func (r *Roster) Count() int {
	return len(r.Registrants)
}

// Clone returns a deep copy so a caller can compute a change without touching the
// loaded snapshot
func (r *Roster) Clone() *Roster {
	out := &Roster{
		SessionID:   r.SessionID,
		Version:     r.Version,
		Registrants: make([]*Registrant, len(r.Registrants)),
	}
	for i, reg := range r.Registrants {
		cp := *reg
		out.Registrants[i] = &cp
	}
	return out
}

// Find returns the registrant with the given id, or nil
func (r *Roster) Find(registrantID string) *Registrant {
	for _, reg := range r.Registrants {
		if reg.ID == registrantID {
			return reg
		}
	}
	return nil
}

// FindByName returns the registrant with the given display name, or nil
func (r *Roster) FindByName(displayName string) *Registrant {
	for _, reg := range r.Registrants {
		if reg.DisplayName == displayName {
			return reg
		}
	}
	return nil
}

// SelfOf returns the user's own entry, or nil
func (r *Roster) SelfOf(userID string) *Registrant {
	for _, reg := range r.Registrants {
		if reg.IsSelf() && reg.OwnerUserID == userID {
			return reg
		}
	}
	return nil
}

// GuestsOf returns the guests hosted by the user, in roster order
func (r *Roster) GuestsOf(userID string) []*Registrant {
	var guests []*Registrant
	for _, reg := range r.Registrants {
		if reg.IsGuest() && reg.OwnerUserID == userID {
			guests = append(guests, reg)
		}
	}
	return guests
}

// CancellationBatch returns every entry removed when registrantID is cancelled: a Self
// entry takes its owner's guests with it
func (r *Roster) CancellationBatch(registrantID string) []*Registrant {
	target := r.Find(registrantID)
	if target == nil {
		return nil
	}
	if !target.IsSelf() {
		return []*Registrant{target}
	}
	return append([]*Registrant{target}, r.GuestsOf(target.OwnerUserID)...)
}

// Active returns the entries within capacity
func (r *Roster) Active(capacity int) []*Registrant {
	var out []*Registrant
	for _, reg := range r.Registrants {
		if reg.IsActive(capacity) {
			out = append(out, reg)
		}
	}
	return out
}

// Waitlisted returns the entries beyond capacity
func (r *Roster) Waitlisted(capacity int) []*Registrant {
	var out []*Registrant
	for _, reg := range r.Registrants {
		if !reg.IsActive(capacity) {
			out = append(out, reg)
		}
	}
	return out
}

// Append places reg at the end of the roster and returns its position
func (r *Roster) Append(reg *Registrant) int {
	reg.SessionID = r.SessionID
	reg.Position = len(r.Registrants) + 1
	r.Registrants = append(r.Registrants, reg)
	return reg.Position
}

// Remove drops the given ids and returns the removed entries. Positions are left as
// they were; call Recompact afterwards.
func (r *Roster) Remove(ids ...string) []*Registrant {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var removed []*Registrant
	kept := r.Registrants[:0:0]
	for _, reg := range r.Registrants {
		if drop[reg.ID] {
			removed = append(removed, reg)
			continue
		}
		kept = append(kept, reg)
	}
	r.Registrants = kept
	return removed
}

// Recompact renumbers the entries 1..N in their current order and returns only the
// entries whose position changed
func (r *Roster) Recompact() []*Registrant {
	sort.SliceStable(r.Registrants, func(i, j int) bool {
		return r.Registrants[i].Position < r.Registrants[j].Position
	})
	var moved []*Registrant
	for i, reg := range r.Registrants {
		if reg.Position != i+1 {
			reg.Position = i + 1
			moved = append(moved, reg)
		}
	}
	return moved
}

// CheckDense verifies positions are exactly 1..N with no duplicates or gaps
func (r *Roster) CheckDense() error {
	seen := make(map[int]bool, len(r.Registrants))
	for _, reg := range r.Registrants {
		if reg.Position < 1 || reg.Position > len(r.Registrants) {
			return fmt.Errorf("registrant %s has position %d outside 1..%d", reg.ID, reg.Position, len(r.Registrants))
		}
		if seen[reg.Position] {
			return fmt.Errorf("position %d is held by more than one registrant", reg.Position)
		}
		seen[reg.Position] = true
	}
	return nil
}
