package domain

import "context"

// Notification actions passed to the Notifier by the dispatch handlers.
const (
	NotifyActionCreated   = "created"
	NotifyActionPromoted  = "promoted"
	NotifyActionCancelled = "cancelled"
)

// Notifier informs the registrant about a registration state change. The core
// does not know how the notification is delivered (email, push, websocket);
// implementations must not block indefinitely.
type Notifier interface {
	Notify(ctx context.Context, reg *EventRegistration, action string) error
}
