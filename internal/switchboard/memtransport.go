package switchboard

import (
	"sync"

	"github.com/lux-nexus/switchboard/internal/errs"
)

// MemTransport is an in-process loopback Transport, used by tests and by
// the conductor's "memory" network setting (§4.8 boot step 2) to exercise
// the switchboard without a real socket. Each connected client is given a
// *MemClient handle to push frames in and read replies from.
type MemTransport struct {
	mu      sync.Mutex
	events  chan Event
	clients map[string]*MemClient
	closed  bool
}

// NewMemTransport returns an empty in-memory Transport.
func NewMemTransport() *MemTransport {
	return &MemTransport{
		events:  make(chan Event, 256),
		clients: make(map[string]*MemClient),
	}
}

// Events implements Transport.
func (t *MemTransport) Events() <-chan Event { return t.events }

// Send implements Transport: delivers b to the named client's inbox.
func (t *MemTransport) Send(uri string, b []byte) error {
	t.mu.Lock()
	c, ok := t.clients[uri]
	t.mu.Unlock()
	if !ok {
		return errs.ErrNoSuchInstance
	}
	select {
	case c.inbox <- b:
		return nil
	default:
		return errs.ErrServiceBusy
	}
}

// Close implements Transport.
func (t *MemTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.events)
	return nil
}

// MemClient is one simulated session attached to a MemTransport.
type MemClient struct {
	uri       string
	transport *MemTransport
	inbox     chan []byte
}

// Connect registers a new client at uri and emits EventConnect.
func (t *MemTransport) Connect(uri string) *MemClient {
	c := &MemClient{uri: uri, transport: t, inbox: make(chan []byte, 256)}
	t.mu.Lock()
	t.clients[uri] = c
	t.mu.Unlock()
	t.events <- Event{Kind: EventConnect, URI: uri}
	return c
}

// Send pushes a frame from this client to the switchboard (EventPayload).
func (c *MemClient) Send(b []byte) {
	c.transport.events <- Event{Kind: EventPayload, URI: c.uri, Payload: b}
}

// Recv blocks until a reply addressed to this client arrives.
func (c *MemClient) Recv() []byte {
	return <-c.inbox
}

// TryRecv returns a reply if one is already queued, without blocking.
func (c *MemClient) TryRecv() ([]byte, bool) {
	select {
	case b := <-c.inbox:
		return b, true
	default:
		return nil, false
	}
}

// Disconnect emits EventDisconnect and removes the client.
func (c *MemClient) Disconnect() {
	c.transport.mu.Lock()
	delete(c.transport.clients, c.uri)
	c.transport.mu.Unlock()
	c.transport.events <- Event{Kind: EventDisconnect, URI: c.uri}
}
