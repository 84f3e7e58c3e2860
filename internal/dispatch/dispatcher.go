// Package dispatch fans out committed domain events to in-process handlers.
// Handlers are registered per event type at startup; there is no runtime type
// switching at the call sites that raise events.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"eventbooking/internal/domain"
)

// Handler processes one domain event after the transaction that produced it
// has committed.
type Handler func(ctx context.Context, ev domain.DomainEvent) error

// Dispatcher is a typed handler registry keyed by event type discriminator.
// Register all handlers before serving; Dispatch is safe for concurrent use
// once registration is done.
type Dispatcher struct {
	handlers map[string][]Handler
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Register adds a handler for the given event type. Multiple handlers per
// type run in registration order.
func (d *Dispatcher) Register(eventType string, h Handler) {
	d.handlers[eventType] = append(d.handlers[eventType], h)
}

// Dispatch invokes the registered handlers for each event, in the order the
// events were appended by the aggregate. A handler error stops dispatch and
// propagates to the caller; the outbox remains the durability backstop for
// external delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, events []domain.DomainEvent) error {
	for _, ev := range events {
		hs, ok := d.handlers[ev.EventType()]
		if !ok {
			d.logger.Debug("no handler registered for event", "event_type", ev.EventType())
			continue
		}
		for _, h := range hs {
			if err := h(ctx, ev); err != nil {
				return fmt.Errorf("dispatch %s: %w", ev.EventType(), err)
			}
		}
	}
	return nil
}

var _ domain.EventDispatcher = (*Dispatcher)(nil)
