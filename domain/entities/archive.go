package entities

import (
	"fmt"
	"time"
)

// SessionArchive is the immutable record written when a session closes
type SessionArchive struct {
	Key                string        `db:"key"` // Calendar date, suffixed on collision
	SessionID          string        `db:"session_id"`
	Date               string        `db:"date"`
	Capacity           int           `db:"capacity"`
	FeeAmount          int64         `db:"fee_amount"`
	Registrants        []*Registrant `db:"registrants"`
	ActiveCount        int           `db:"active_count"`
	PaidActiveCount    int           `db:"paid_active_count"`
	CourtsUsed         int           `db:"courts_used"`
	EquipmentUnitsUsed int           `db:"equipment_units_used"`
	Income             int64         `db:"income"`
	Expense            int64         `db:"expense"`
	Net                int64         `db:"net"`
	ArchivedAt         time.Time     `db:"archived_at"`
}

// CostRates prices the resources a session consumes
type CostRates struct {
	PlayersPerCourt int
	CourtRate       int64
	UnitRate        int64
}

// CourtsFor returns ceil(active / playersPerCourt)
func (r CostRates) CourtsFor(active int) int {
	if active <= 0 || r.PlayersPerCourt <= 0 {
		return 0
	}
	return (active + r.PlayersPerCourt - 1) / r.PlayersPerCourt
}

// NewSessionArchive computes the settlement totals for a session and its roster
func NewSessionArchive(session *Session, roster *Roster, rates CostRates, archivedAt time.Time) *SessionArchive {
	snapshot := roster.Clone().Registrants

	active := 0
	paidActive := 0
	for _, reg := range snapshot {
		if !reg.IsActive(session.Capacity) {
			continue
		}
		active++
		if reg.Paid {
			paidActive++
		}
	}

	courts := rates.CourtsFor(active)
	income := int64(paidActive) * session.FeeAmount
	expense := int64(courts)*rates.CourtRate + int64(session.EquipmentUnitsUsed)*rates.UnitRate

	return &SessionArchive{
		Key:                session.CalendarDate(),
		SessionID:          session.ID,
		Date:               session.CalendarDate(),
		Capacity:           session.Capacity,
		FeeAmount:          session.FeeAmount,
		Registrants:        snapshot,
		ActiveCount:        active,
		PaidActiveCount:    paidActive,
		CourtsUsed:         courts,
		EquipmentUnitsUsed: session.EquipmentUnitsUsed,
		Income:             income,
		Expense:            expense,
		Net:                income - expense,
		ArchivedAt:         archivedAt,
	}
}

// ArchiveKey returns the key for the nth attempt at a date: the bare date first, then -2, -3...
func ArchiveKey(date string, attempt int) string {
	if attempt <= 1 {
		return date
	}
	return fmt.Sprintf("%s-%d", date, attempt)
}
