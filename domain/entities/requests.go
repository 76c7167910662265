package entities

import (
	"fmt"
	"strings"
	"time"
)

// GiftRequest moves funds from one player to another who is running low
type GiftRequest struct {
	FromUserID string
	ToUserID   string
	Amount     int64
}

func (r GiftRequest) Validate() error {
	if r.FromUserID == "" || r.ToUserID == "" {
		return fmt.Errorf("sender and recipient are required: %w", ErrTransferNotAllowed)
	}
	if r.FromUserID == r.ToUserID {
		return fmt.Errorf("cannot gift to yourself: %w", ErrTransferNotAllowed)
	}
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// TopUpRequest records money an admin received outside the system
type TopUpRequest struct {
	UserID string
	Amount int64
	Note   string
}

func (r TopUpRequest) Validate() error {
	if r.UserID == "" {
		return ErrUserNotFound
	}
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// AdjustmentRequest is a signed admin correction; it may take a balance negative
type AdjustmentRequest struct {
	UserID string
	Amount int64
	Note   string
}

func (r AdjustmentRequest) Validate() error {
	if r.UserID == "" {
		return ErrUserNotFound
	}
	if r.Amount == 0 {
		return fmt.Errorf("adjustment cannot be zero: %w", ErrInvalidAmount)
	}
	if strings.TrimSpace(r.Note) == "" {
		return fmt.Errorf("adjustments require a note")
	}
	return nil
}

// AddRegistrantRequest lets an admin put someone on the roster directly. An empty
// GuestName adds the owner themself.
type AddRegistrantRequest struct {
	SessionID   string
	OwnerUserID string
	GuestName   string
}

func (r AddRegistrantRequest) Validate() error {
	if r.SessionID == "" {
		return ErrSessionNotFound
	}
	if r.OwnerUserID == "" {
		return ErrUserNotFound
	}
	return nil
}

// RemoveRegistrantRequest lets an admin take one entry off the roster
type RemoveRegistrantRequest struct {
	SessionID    string
	RegistrantID string
	Refund       bool
}

func (r RemoveRegistrantRequest) Validate() error {
	if r.SessionID == "" {
		return ErrSessionNotFound
	}
	if r.RegistrantID == "" {
		return ErrRegistrantNotFound
	}
	return nil
}

// SessionSettings holds the admin-editable fields of a session. Nil fields are left as
// they are.
type SessionSettings struct {
	Capacity       *int
	FeeAmount      *int64
	ScheduledStart *time.Time
	LockWindow     *time.Duration
}

// IsEmpty reports whether no field would change
func (s SessionSettings) IsEmpty() bool {
	return s.Capacity == nil && s.FeeAmount == nil && s.ScheduledStart == nil && s.LockWindow == nil
}

// ApplyTo copies the set fields onto session
func (s SessionSettings) ApplyTo(session *Session) {
	if s.Capacity != nil {
		session.Capacity = *s.Capacity
	}
	if s.FeeAmount != nil {
		session.FeeAmount = *s.FeeAmount
	}
	if s.ScheduledStart != nil {
		session.ScheduledStart = *s.ScheduledStart
	}
	if s.LockWindow != nil {
		session.LockWindow = *s.LockWindow
	}
}
