package infrastructure

import (
	"fmt"

	"courtside/domain/events"
)

// NotificationStream is the JetStream stream that holds every notification subject
const NotificationStream = "courtside_notifications"

// EventSubjectMapper maps event types to NATS subjects
type EventSubjectMapper struct {
	subjects map[events.EventType]string
}

// NewEventSubjectMapper creates a mapper with the default subjects
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{
		subjects: map[events.EventType]string{
			events.EventTypeSessionPublished: "courtside.sessions.published",
			events.EventTypePlayerCancelled:  "courtside.roster.player_cancelled",
			events.EventTypeLowBalance:       "courtside.wallet.low_balance",
		},
	}
}

// MapEventToSubject returns the subject for an event. Unknown types land under
// courtside.events.<type> so nothing is silently dropped.
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := m.subjects[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("courtside.events.%s", event.Type())
}

// GetAllSubjects returns every subject the stream must capture
func (m *EventSubjectMapper) GetAllSubjects() []string {
	subjects := make([]string, 0, len(m.subjects)+1)
	for _, subject := range m.subjects {
		subjects = append(subjects, subject)
	}
	return append(subjects, "courtside.events.*")
}
