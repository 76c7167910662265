package entities

import (
	"strings"
	"time"
)

// RegistrantKind distinguishes a user's own entry from guests they host
type RegistrantKind string

const (
	RegistrantKindSelf  RegistrantKind = "self"
	RegistrantKindGuest RegistrantKind = "guest"
)

// Classification is derived from position against capacity, never stored
type Classification string

const (
	ClassificationActive     Classification = "active"
	ClassificationWaitlisted Classification = "waitlisted"
)

// GuestSeparator joins the host and guest names in a guest's display name
const GuestSeparator = "/"

// Registrant is one roster entry
type Registrant struct {
	ID          string         `db:"id"`
	SessionID   string         `db:"session_id"`
	OwnerUserID string         `db:"owner_user_id"` // Who pays
	DisplayName string         `db:"display_name"`
	Kind        RegistrantKind `db:"kind"`
	Position    int            `db:"position"` // 1-indexed, dense within a session
	Paid        bool           `db:"paid"`
	CreatedAt   time.Time      `db:"created_at"`
}

// IsSelf returns true for a user's own entry
func (r *Registrant) IsSelf() bool {
	return r.Kind == RegistrantKindSelf
}

// IsGuest returns true for an entry hosted by another user
func (r *Registrant) IsGuest() bool {
	return r.Kind == RegistrantKindGuest
}

// IsActive returns true if the entry's position is within capacity
func (r *Registrant) IsActive(capacity int) bool {
	return r.Position <= capacity
}

// Classify returns the entry's classification for a capacity
func (r *Registrant) Classify(capacity int) Classification {
	return ClassifyPosition(r.Position, capacity)
}

// ClassifyPosition maps a position to active or waitlisted
func ClassifyPosition(position, capacity int) Classification {
	if position <= capacity {
		return ClassificationActive
	}
	return ClassificationWaitlisted
}

// GuestDisplayName namespaces a guest under the host so different hosts may bring
// guests with the same name
func GuestDisplayName(hostName, guestName string) string {
	return strings.TrimSpace(hostName) + GuestSeparator + strings.TrimSpace(guestName)
}
