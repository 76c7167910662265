package infrastructure

import (
	"context"
	"sync"

	"courtside/domain/events"
	"courtside/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// PendingNotifier holds events until Flush hands them to the real gateway. Discard drops
// them, so a batch that fails halfway announces nothing.
type PendingNotifier struct {
	gateway interfaces.NotificationGateway
	pending []events.Event
	mu      sync.Mutex
}

var _ interfaces.NotificationGateway = (*PendingNotifier)(nil)

// NewPendingNotifier creates a pending notifier in front of gateway
func NewPendingNotifier(gateway interfaces.NotificationGateway) *PendingNotifier {
	return &PendingNotifier{
		gateway: gateway,
		pending: make([]events.Event, 0),
	}
}

// Notify queues the event without delivering it
func (p *PendingNotifier) Notify(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = append(p.pending, event)
	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"pendingCount": len(p.pending),
	}).Debug("Queued notification")
	return nil
}

// Flush delivers every queued event. A failed delivery is logged and the rest still go
// out. It returns the number delivered.
func (p *PendingNotifier) Flush(ctx context.Context) int {
	p.mu.Lock()
	queued := p.pending
	p.pending = make([]events.Event, 0)
	p.mu.Unlock()

	delivered := 0
	for _, event := range queued {
		if err := p.gateway.Notify(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Failed to deliver notification during flush")
			continue
		}
		delivered++
	}
	return delivered
}

// Discard clears all queued events without delivering them
func (p *PendingNotifier) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()

	log.WithField("discardedCount", len(p.pending)).Debug("Discarding queued notifications")
	p.pending = p.pending[:0]
}

// Len returns the number of queued events
func (p *PendingNotifier) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
