package engine

import (
	"context"

	"github.com/nova-trading/execengine/event"
)

// VenueClient is the engine's one external collaborator: it turns
// Commands into venue-protocol requests and yields the resulting events
// back in order (spec.md §6). The venue package provides a websocket
// reference implementation; tests use a fake. Its lifecycle has three
// steps per spec.md §6: connect, disconnect, dispose - Disconnect tears
// down the live connection and may be reconnected, Dispose releases the
// client's resources for good and must not be followed by Connect.
type VenueClient interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Dispose() error
	Send(ctx context.Context, cmd Command) error
	Events() <-chan event.Envelope
}

// Subscriber receives every event the engine applies, synchronously and
// in the order the engine applied it (spec.md §4.5). Implementations
// must not block the engine's event loop for long; notify package's
// Telegram subscriber only ever does a best-effort async send.
type Subscriber interface {
	OnEvent(ev event.Envelope)
}
