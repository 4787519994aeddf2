package switchboard

// EventKind discriminates the four transport ticks the event loop reacts
// to (§4.9's `repeat` loop: Connect, Payload, Disconnect, Unbind).
type EventKind uint8

const (
	EventConnect EventKind = iota
	EventPayload
	EventDisconnect
	EventUnbind
)

// Event is one tick the abstract transport hands to the switchboard's
// event loop. URI identifies the session; Payload is populated only for
// EventPayload.
type Event struct {
	Kind    EventKind
	URI     string
	Payload []byte
}

// Transport is the abstract session layer the switchboard relays over:
// "memory-loopback, in-process, or sim2h URL" per §4.8 boot step 2,
// generalized here to cover the switchboard's own relay role rather than
// just the conductor's client side. Concrete implementations are
// internal/switchboard's in-memory loopback (tests) and its
// gorilla/websocket binding (production).
type Transport interface {
	// Events returns the channel of ticks this transport produces.
	// Closed when the transport itself shuts down.
	Events() <-chan Event

	// Send delivers b to the session identified by uri. Sends are
	// best-effort (§4.9 "Broadcast semantics"): a failure is returned to
	// the caller to log, never retried by the transport itself.
	Send(uri string, b []byte) error

	// Close shuts the transport down, closing the Events channel.
	Close() error
}
