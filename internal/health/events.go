package health

import "github.com/rs/zerolog"

// Event is one lifecycle transition. Minimal and stable: a name, the state
// entered and an optional reason.
type Event struct {
	Name   string
	State  State
	Reason string
}

// EventPublisher receives lifecycle events. Implementations must be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// LogPublisher writes lifecycle events through a structured logger.
type LogPublisher struct {
	Log zerolog.Logger
}

func (p LogPublisher) Publish(e Event) {
	ev := p.Log.Info().Str("state", string(e.State))
	if e.Reason != "" {
		ev = ev.Str("reason", e.Reason)
	}
	ev.Msg(e.Name)
}
