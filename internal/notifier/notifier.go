// Package notifier is the boundary to the platform's notification fan-out.
// The matchmaker only emits events here; delivery (push, e-mail, in-app) is
// someone else's concern. A notifier failure must never affect a state
// transition that already committed, so everything downstream of Dispatcher
// is fire-and-forget.
package notifier

import "context"

// Event kinds emitted by the matchmaker.
const (
	EventChatFormed = "chat.formed"
	EventMessageNew = "message.new"
)

// Notifier delivers a single event for a single user.
type Notifier interface {
	Notify(ctx context.Context, userID uint, eventKind string, payload any) error
}

// Noop discards every event. Used when no broker is configured and in tests.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, uint, string, any) error {
	return nil
}
