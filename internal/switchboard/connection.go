package switchboard

import (
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/wire"
)

// limboQueueCap bounds the number of messages buffered for a connection
// still in Limbo (§3 ConnectionState, "bounded queue").
const limboQueueCap = 64

// connPhase discriminates ConnectionState's two variants (§3).
type connPhase uint8

const (
	phaseLimbo connPhase = iota
	phaseJoined
)

// connection holds per-session state for one transport URI: whether it
// has completed JoinSpace yet, and if so which space/agent it belongs to.
// connection is only ever touched from the switchboard's single event
// loop goroutine (§5).
type connection struct {
	uri   string
	phase connPhase

	// Limbo fields.
	pending []wire.SignedWireMessage

	// Joined fields.
	space   address.Address
	agent   address.Address
	dhtLoc  uint32
}

// newLimboConnection returns a freshly accepted, unjoined connection.
func newLimboConnection(uri string) *connection {
	return &connection{uri: uri, phase: phaseLimbo}
}

// bufferLimbo appends m to the pending queue, dropping the oldest entry
// if the bounded queue is full (§3 "bounded queue").
func (c *connection) bufferLimbo(m wire.SignedWireMessage) {
	if len(c.pending) >= limboQueueCap {
		c.pending = c.pending[1:]
	}
	c.pending = append(c.pending, m)
}

// drainLimbo returns and clears the buffered messages, to be replayed
// through the router now that the connection has joined (§4.9 "flush all
// buffered messages back through the router").
func (c *connection) drainLimbo() []wire.SignedWireMessage {
	out := c.pending
	c.pending = nil
	return out
}

// join transitions c from Limbo to Joined. Per §3's lifecycle summary
// this happens at most once per connection.
func (c *connection) join(space, agent address.Address, dhtLoc uint32) {
	c.phase = phaseJoined
	c.space = space
	c.agent = agent
	c.dhtLoc = dhtLoc
}
