package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"courtside/domain/events"
	"courtside/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// messagePublisher is the part of NATSClient the notifier needs
type messagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// EventEnvelope wraps every notification published to NATS
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Summary       string          `json:"summary"`
	Payload       json.RawMessage `json:"payload"`
}

// NATSNotifier publishes notifications to JetStream
type NATSNotifier struct {
	publisher     messagePublisher
	subjectMapper *EventSubjectMapper
	now           func() time.Time
}

var _ interfaces.NotificationGateway = (*NATSNotifier)(nil)

// NewNATSNotifier creates a new NATS notifier
func NewNATSNotifier(client *NATSClient, subjectMapper *EventSubjectMapper) *NATSNotifier {
	return newNATSNotifier(client, subjectMapper)
}

func newNATSNotifier(publisher messagePublisher, subjectMapper *EventSubjectMapper) *NATSNotifier {
	return &NATSNotifier{
		publisher:     publisher,
		subjectMapper: subjectMapper,
		now:           time.Now,
	}
}

// Notify publishes the event under its mapped subject
func (n *NATSNotifier) Notify(ctx context.Context, event events.Event) error {
	subject := n.subjectMapper.MapEventToSubject(event)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     n.now().UTC(),
		SourceService: "courtside",
		Summary:       event.Summary(),
		Payload:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := n.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Published notification to NATS")
	return nil
}

// EnsureNotificationStream creates the stream that captures every mapped subject
func EnsureNotificationStream(client *NATSClient, subjectMapper *EventSubjectMapper) error {
	return client.EnsureStream(NotificationStream, subjectMapper.GetAllSubjects())
}
