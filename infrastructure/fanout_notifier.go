package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"courtside/domain/events"
	"courtside/domain/interfaces"
)

// NotificationRecorder counts gateway deliveries
type NotificationRecorder interface {
	RecordNotification(ctx context.Context, gateway, eventType string, succeeded bool)
}

// NamedGateway pairs a gateway with the name used in logs and metrics
type NamedGateway struct {
	Name    string
	Gateway interfaces.NotificationGateway
}

// FanoutNotifier delivers each event to every gateway. One failing gateway does not stop
// the others; the joined error names each failure.
type FanoutNotifier struct {
	gateways []NamedGateway
	recorder NotificationRecorder
}

var _ interfaces.NotificationGateway = (*FanoutNotifier)(nil)

// NewFanoutNotifier creates a fan-out over gateways. recorder may be nil.
func NewFanoutNotifier(recorder NotificationRecorder, gateways ...NamedGateway) *FanoutNotifier {
	return &FanoutNotifier{gateways: gateways, recorder: recorder}
}

func (f *FanoutNotifier) Notify(ctx context.Context, event events.Event) error {
	var errs []error
	for _, g := range f.gateways {
		err := g.Gateway.Notify(ctx, event)
		if f.recorder != nil {
			f.recorder.RecordNotification(ctx, g.Name, string(event.Type()), err == nil)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of gateways
func (f *FanoutNotifier) Len() int {
	return len(f.gateways)
}

// NoopNotifier drops every event
type NoopNotifier struct{}

var _ interfaces.NotificationGateway = NoopNotifier{}

func (NoopNotifier) Notify(ctx context.Context, event events.Event) error {
	return nil
}
