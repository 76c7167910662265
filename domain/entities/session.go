package entities

import (
	"errors"
	"time"
)

// SessionStatus is the stored lifecycle state of a session. Locked is derived, never stored.
type SessionStatus string

const (
	SessionStatusDraft     SessionStatus = "draft"
	SessionStatusPublished SessionStatus = "published"
	SessionStatusClosed    SessionStatus = "closed"
)

// CanTransitionTo reports whether the forward-only lifecycle allows moving to next
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionStatusDraft:
		return next == SessionStatusPublished || next == SessionStatusClosed
	case SessionStatusPublished:
		return next == SessionStatusClosed
	}
	return false
}

// Session is one scheduled badminton session
type Session struct {
	ID                 string        `db:"id"`
	Status             SessionStatus `db:"status"`
	Capacity           int           `db:"capacity"`    // Max active players
	FeeAmount          int64         `db:"fee_amount"`  // Per registrant, minor units
	ScheduledStart     time.Time     `db:"scheduled_start"`
	LockWindow         time.Duration `db:"lock_window"` // Registration freezes this long before start
	EquipmentUnitsUsed int           `db:"equipment_units_used"`
	RosterVersion      int64         `db:"roster_version"`
	CreatedAt          time.Time     `db:"created_at"`
	PublishedAt        *time.Time    `db:"published_at"`
	ClosedAt           *time.Time    `db:"closed_at"`
}

// IsDraft returns true while the admin is still configuring the session
func (s *Session) IsDraft() bool {
	return s.Status == SessionStatusDraft
}

// IsPublished returns true once the session is open (it may still be locked)
func (s *Session) IsPublished() bool {
	return s.Status == SessionStatusPublished
}

// IsClosed returns true once the session has been archived
func (s *Session) IsClosed() bool {
	return s.Status == SessionStatusClosed
}

// LockTime returns the instant the lock window begins
func (s *Session) LockTime() time.Time {
	return s.ScheduledStart.Add(-s.LockWindow)
}

// IsLocked returns true for a published session inside its pre-start lock window
func (s *Session) IsLocked(now time.Time) bool {
	return s.IsPublished() && !now.Before(s.LockTime())
}

// AcceptsPlayers returns true when ordinary players may register or cancel
func (s *Session) AcceptsPlayers(now time.Time) bool {
	return s.IsPublished() && !s.IsLocked(now)
}

// AcceptsRosterWrites returns true when the roster itself may grow
func (s *Session) AcceptsRosterWrites(now time.Time) bool {
	return !s.IsClosed() && !s.IsLocked(now)
}

// CalendarDate returns the session date used as the archive key
func (s *Session) CalendarDate() string {
	return s.ScheduledStart.Format("2006-01-02")
}

// ActiveCount returns how many of total registrants are within capacity
func (s *Session) ActiveCount(total int) int {
	if total < s.Capacity {
		return total
	}
	return s.Capacity
}

// WaitlistCount returns how many of total registrants exceed capacity
func (s *Session) WaitlistCount(total int) int {
	if total <= s.Capacity {
		return 0
	}
	return total - s.Capacity
}

// AvailableSlots returns the number of open active positions
func (s *Session) AvailableSlots(total int) int {
	if total >= s.Capacity {
		return 0
	}
	return s.Capacity - total
}

// Validate checks the configurable fields
func (s *Session) Validate() error {
	if s.Capacity <= 0 {
		return errors.New("capacity must be positive")
	}
	if s.FeeAmount < 0 {
		return errors.New("fee cannot be negative")
	}
	if s.LockWindow < 0 {
		return errors.New("lock window cannot be negative")
	}
	if s.ScheduledStart.IsZero() {
		return errors.New("scheduled start is required")
	}
	return nil
}
