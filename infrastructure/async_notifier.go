package infrastructure

import (
	"context"
	"sync"
	"time"

	"courtside/domain/events"
	"courtside/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// AsyncNotifier hands events to a background worker so a slow gateway never holds up
// the operation that produced them. When the buffer is full the event is dropped.
type AsyncNotifier struct {
	gateway interfaces.NotificationGateway
	timeout time.Duration
	queue   chan events.Event
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

var _ interfaces.NotificationGateway = (*AsyncNotifier)(nil)

// NewAsyncNotifier starts the worker. timeout bounds each delivery.
func NewAsyncNotifier(gateway interfaces.NotificationGateway, bufferSize int, timeout time.Duration) *AsyncNotifier {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	a := &AsyncNotifier{
		gateway: gateway,
		timeout: timeout,
		queue:   make(chan events.Event, bufferSize),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *AsyncNotifier) Notify(ctx context.Context, event events.Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		log.WithField("eventType", event.Type()).Warn("Notifier closed, dropping notification")
		return nil
	}

	select {
	case a.queue <- event:
	default:
		log.WithField("eventType", event.Type()).Warn("Notification queue full, dropping notification")
	}
	return nil
}

func (a *AsyncNotifier) run() {
	defer a.wg.Done()
	for event := range a.queue {
		a.deliver(event)
	}
}

func (a *AsyncNotifier) deliver(event events.Event) {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := a.gateway.Notify(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Warn("Failed to deliver notification")
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end
func (a *AsyncNotifier) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
