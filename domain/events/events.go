package events

import "fmt"

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeSessionPublished EventType = "session_published"
	EventTypePlayerCancelled  EventType = "player_cancelled"
	EventTypeLowBalance       EventType = "low_balance"
)

// Event is the base interface for all notifications. Summary is the human-readable
// text handed to chat-style gateways.
type Event interface {
	Type() EventType
	Summary() string
}

// SessionPublishedEvent is emitted once a session opens for registration
type SessionPublishedEvent struct {
	SessionID      string `json:"session_id"`
	AvailableSlots int    `json:"available_slots"`
	WaitlistCount  int    `json:"waitlist_count"`
}

func (e SessionPublishedEvent) Type() EventType {
	return EventTypeSessionPublished
}

func (e SessionPublishedEvent) Summary() string {
	if e.WaitlistCount > 0 {
		return fmt.Sprintf("Session %s is open: %d slots left, %d on the waitlist", e.SessionID, e.AvailableSlots, e.WaitlistCount)
	}
	return fmt.Sprintf("Session %s is open: %d slots left", e.SessionID, e.AvailableSlots)
}

// PlayerCancelledEvent is emitted after a registrant leaves the roster. SlotFreed is
// true when an active position opened up.
type PlayerCancelledEvent struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	SlotFreed bool   `json:"slot_freed"`
}

func (e PlayerCancelledEvent) Type() EventType {
	return EventTypePlayerCancelled
}

func (e PlayerCancelledEvent) Summary() string {
	if e.SlotFreed {
		return fmt.Sprintf("%s cancelled, a slot is free in session %s", e.Name, e.SessionID)
	}
	return fmt.Sprintf("%s left the waitlist for session %s", e.Name, e.SessionID)
}

// LowBalanceEvent is emitted when a wallet drops below the low-balance threshold
type LowBalanceEvent struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

func (e LowBalanceEvent) Type() EventType {
	return EventTypeLowBalance
}

func (e LowBalanceEvent) Summary() string {
	return fmt.Sprintf("Wallet of %s is low: balance %d", e.UserID, e.Balance)
}
