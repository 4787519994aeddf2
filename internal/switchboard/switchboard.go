package switchboard

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/luxfi/log"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/aspectmap"
	"github.com/lux-nexus/switchboard/internal/metrics"
	"github.com/lux-nexus/switchboard/internal/model"
	"github.com/lux-nexus/switchboard/internal/signer"
	"github.com/lux-nexus/switchboard/internal/wire"
)

// Switchboard is C9's event loop: it owns no business logic beyond §4.9's
// router, reading Events from an abstract Transport and reacting on a
// single goroutine (§5 "Switchboard single-threaded"). Per-space state
// lives behind Space's own RWMutex so admin reads never block Run.
type Switchboard struct {
	log       log.Logger
	transport Transport
	registry  *Registry
	metrics   *metrics.Metrics
	rng       *rand.Rand

	conns map[string]*connection
}

// Option configures a Switchboard at construction.
type Option func(*Switchboard)

// WithMetrics attaches a metrics.Metrics collector set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(sb *Switchboard) { sb.metrics = m }
}

// WithRandSource overrides the gossip-peer-selection random source,
// used by tests that need deterministic peer picks.
func WithRandSource(r *rand.Rand) Option {
	return func(sb *Switchboard) { sb.rng = r }
}

// New returns a Switchboard relaying over transport.
func New(transport Transport, logger log.Logger, opts ...Option) *Switchboard {
	sb := &Switchboard{
		log:       logger,
		transport: transport,
		registry:  NewRegistry(),
		conns:     make(map[string]*connection),
		rng:       rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(sb)
	}
	return sb
}

// Registry exposes the space registry for admin/read-only queries.
func (sb *Switchboard) Registry() *Registry { return sb.registry }

// Run drains transport events until ctx is canceled or the transport's
// Events channel closes (§4.9 "repeat: process transport ticks").
func (sb *Switchboard) Run(ctx context.Context) {
	for {
		select {
		case ev, ok := <-sb.transport.Events():
			if !ok {
				return
			}
			sb.handleEvent(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (sb *Switchboard) handleEvent(ev Event) {
	switch ev.Kind {
	case EventConnect:
		sb.conns[ev.URI] = newLimboConnection(ev.URI)
		if sb.metrics != nil {
			sb.metrics.Sessions.Inc()
		}
		sb.log.Debug("switchboard: connection accepted", log.String("uri", ev.URI))

	case EventPayload:
		sb.handlePayload(ev.URI, ev.Payload)

	case EventDisconnect:
		sb.leaveAll(ev.URI)
		delete(sb.conns, ev.URI)
		if sb.metrics != nil {
			sb.metrics.Sessions.Dec()
		}
		sb.log.Debug("switchboard: connection closed", log.String("uri", ev.URI))

	case EventUnbind:
		panic("switchboard: transport unbind is fatal")
	}
}

func (sb *Switchboard) handlePayload(uri string, b []byte) {
	conn, ok := sb.conns[uri]
	if !ok {
		sb.log.Warn("switchboard: payload for unknown connection", log.String("uri", uri))
		return
	}

	sm, err := wire.Decode(b)
	if err != nil {
		sb.log.Warn("switchboard: decode failed", log.String("uri", uri), log.Err(err))
		return
	}

	if !signer.Verify(sm.Provenance.Agent, wire.SigningBytes(sm.Message), sm.Provenance.Signature) {
		sb.log.Warn("switchboard: signature verification failed", log.String("uri", uri))
		sb.sendErr(uri, wire.ErrVerifyFailed, "signature verification failed")
		// §4.9: "If verification fails the frame is rejected and
		// logged; the connection is not closed" and §8 invariant 5: no
		// state mutation follows from an unverified message.
		return
	}

	sb.route(conn, sm.Message, sm.Provenance.Agent)
}

func (sb *Switchboard) route(conn *connection, msg wire.WireMessage, signerAgent address.Address) {
	if conn.phase == phaseLimbo {
		sb.routeLimbo(conn, msg, signerAgent)
		return
	}
	sb.routeJoined(conn, msg, signerAgent)
}

func (sb *Switchboard) routeLimbo(conn *connection, msg wire.WireMessage, signerAgent address.Address) {
	if msg.Kind != wire.KindJoinSpace {
		conn.bufferLimbo(wire.SignedWireMessage{Message: msg, Provenance: wire.Provenance{Agent: signerAgent}})
		sb.sendErr(conn.uri, wire.ErrMessageWhileInLimbo, "message while in limbo")
		return
	}

	js := msg.JoinSpace
	if js.Agent != signerAgent {
		sb.sendErr(conn.uri, wire.ErrSignerMismatch, "join agent does not match signer")
		return
	}

	loc := dhtLocation(js.Agent)
	conn.join(js.SpaceAddress, js.Agent, loc)

	space := sb.registry.GetOrCreate(js.SpaceAddress)
	space.Join(js.Agent, conn.uri)
	if sb.metrics != nil {
		sb.metrics.SpaceMembers.WithLabelValues(js.SpaceAddress.String()).Set(float64(space.MemberCount()))
	}
	sb.log.Debug("switchboard: agent joined space",
		log.Stringer("agent", js.Agent), log.Stringer("space", js.SpaceAddress))

	// Flush whatever was buffered while this connection sat in Limbo, now
	// that it is joined and the signer is the joined agent (§4.9).
	for _, buffered := range conn.drainLimbo() {
		sb.routeJoined(conn, buffered.Message, js.Agent)
	}

	sb.sendTo(conn.uri, wire.WireMessage{
		Kind:                        wire.KindHandleGetAuthoringEntryList,
		HandleGetAuthoringEntryList: &wire.HandleGetAuthoringEntryList{SpaceAddress: js.SpaceAddress},
	})
	sb.sendTo(conn.uri, wire.WireMessage{
		Kind:                        wire.KindHandleGetGossipingEntryList,
		HandleGetGossipingEntryList: &wire.HandleGetGossipingEntryList{SpaceAddress: js.SpaceAddress},
	})
}

func (sb *Switchboard) routeJoined(conn *connection, msg wire.WireMessage, signerAgent address.Address) {
	if declared, ok := declaredSpaceOf(msg); ok && declared != conn.space {
		sb.sendErr(conn.uri, wire.ErrSpaceMismatch, "space mismatch")
		return
	}

	space, ok := sb.registry.Get(conn.space)
	if !ok {
		sb.log.Error("switchboard: joined connection has no registered space", log.Stringer("space", conn.space))
		return
	}

	switch msg.Kind {
	case wire.KindPing:
		sb.sendTo(conn.uri, wire.WireMessage{Kind: wire.KindPong, Pong: &wire.Pong{}})

	case wire.KindPong:
		// no-op

	case wire.KindLeaveSpace:
		sb.leave(conn)

	case wire.KindSendDirectMessage:
		sb.handleSendDirectMessage(conn, space, msg.SendDirectMessage, signerAgent)

	case wire.KindHandleSendDirectMessageResult:
		sb.handleSendDirectMessageResult(conn, space, msg.HandleSendDirectMessageResult, signerAgent)

	case wire.KindPublishEntry:
		sb.handlePublishEntry(conn, space, msg.PublishEntry, signerAgent)

	case wire.KindHandleGetAuthoringEntryListResult:
		sb.handleAuthoringListResult(conn, space, msg.HandleGetAuthoringEntryListResult, signerAgent)

	case wire.KindHandleGetGossipingEntryListResult:
		sb.handleGossipingListResult(conn, space, msg.HandleGetGossipingEntryListResult, signerAgent)

	case wire.KindHandleFetchEntryResult:
		sb.handleFetchEntryResult(conn, space, msg.HandleFetchEntryResult, signerAgent)

	default:
		sb.log.Warn("switchboard: unimplemented message kind", log.Stringer("kind", msg.Kind))
	}
}

func (sb *Switchboard) handleSendDirectMessage(conn *connection, space *Space, m *wire.SendDirectMessage, signerAgent address.Address) {
	if m.FromAgent != signerAgent || m.FromAgent != conn.agent {
		sb.sendErr(conn.uri, wire.ErrSignerMismatch, "from does not match signer")
		return
	}
	targetURI, ok := space.URI(m.ToAgent)
	if !ok {
		sb.sendErr(conn.uri, wire.ErrSpaceMismatch, fmt.Sprintf("unknown recipient %s", m.ToAgent))
		return
	}
	sb.sendTo(targetURI, wire.WireMessage{
		Kind: wire.KindHandleSendDirectMessage,
		HandleSendDirectMessage: &wire.HandleSendDirectMessage{
			SpaceAddress: conn.space,
			FromAgent:    m.FromAgent,
			ToAgent:      m.ToAgent,
			Payload:      m.Payload,
		},
	})
}

func (sb *Switchboard) handleSendDirectMessageResult(conn *connection, space *Space, m *wire.HandleSendDirectMessageResult, signerAgent address.Address) {
	if m.FromAgent != signerAgent {
		sb.sendErr(conn.uri, wire.ErrSignerMismatch, "from does not match signer")
		return
	}
	targetURI, ok := space.URI(m.ToAgent)
	if !ok {
		sb.log.Warn("switchboard: direct message result for unknown recipient", log.Stringer("to", m.ToAgent))
		return
	}
	sb.sendTo(targetURI, wire.WireMessage{
		Kind:                          wire.KindHandleSendDirectMessageResult,
		HandleSendDirectMessageResult: m,
	})
}

// handlePublishEntry implements §4.9 PublishEntry: records each aspect
// into all_aspects and broadcasts it to every joined agent except the
// provider. Zero aspects is accepted and broadcasts nothing (§8).
func (sb *Switchboard) handlePublishEntry(conn *connection, space *Space, m *wire.PublishEntry, signerAgent address.Address) {
	for _, aspect := range m.AspectList {
		space.AllAspects().Add(m.EntryAddress, aspect.Address())
	}
	if len(m.AspectList) == 0 {
		return
	}
	recipients := space.OtherMembers(signerAgent)
	for _, aspect := range m.AspectList {
		sb.broadcastStoreAspect(space, recipients, conn.space, signerAgent, m.EntryAddress, aspect)
	}
}

func (sb *Switchboard) broadcastStoreAspect(space *Space, recipients []address.Address, spaceAddr, provider, entryAddr address.Address, aspect model.Aspect) {
	for _, agent := range recipients {
		uri, ok := space.URI(agent)
		if !ok {
			continue
		}
		// Best-effort: a failed send is logged, not retried here (§4.9
		// "Broadcast semantics" — the next gossip round drives retry).
		sb.sendTo(uri, wire.WireMessage{
			Kind: wire.KindHandleStoreEntryAspect,
			HandleStoreEntryAspect: &wire.HandleStoreEntryAspect{
				SpaceAddress: spaceAddr,
				Provider:     provider,
				EntryAddress: entryAddr,
				Aspect:       aspect,
			},
		})
	}
}

// handleAuthoringListResult implements §4.9: the reporting agent
// authored these entries and the network hasn't seen them yet, so every
// entry with aspects unseen in all_aspects gets fetched back from the
// reporter itself.
func (sb *Switchboard) handleAuthoringListResult(conn *connection, space *Space, m *wire.HandleGetAuthoringEntryListResult, signerAgent address.Address) {
	reported := entriesToMap(m.Entries)
	unseen := reported.Diff(space.AllAspects())
	for _, entryAddr := range unseen.Entries() {
		sb.sendTo(conn.uri, wire.WireMessage{
			Kind: wire.KindHandleFetchEntry,
			HandleFetchEntry: &wire.HandleFetchEntry{
				SpaceAddress: conn.space,
				EntryAddress: entryAddr,
				ToAgent:      signerAgent,
				Reason:       wire.AuthoringFetch(),
			},
		})
	}
}

// handleGossipingListResult implements §4.9: the reporter's holding list
// is diffed against all_aspects; anything missing from it gets fetched
// from a uniformly-random other member, tagged so the reply forwards
// straight back to the reporter (§9 redesign: explicit FetchReason
// replaces the original request_id overload).
func (sb *Switchboard) handleGossipingListResult(conn *connection, space *Space, m *wire.HandleGetGossipingEntryListResult, signerAgent address.Address) {
	reported := entriesToMap(m.Entries)
	missing := space.AllAspects().Diff(reported)
	if missing.IsEmpty() {
		return
	}
	others := space.OtherMembers(signerAgent)
	if len(others) == 0 {
		sb.log.Error("switchboard: gossip fetch needed but no peers to ask", log.Stringer("space", conn.space))
		return
	}
	for _, entryAddr := range missing.Entries() {
		picked := others[sb.rng.Intn(len(others))]
		pickedURI, ok := space.URI(picked)
		if !ok {
			continue
		}
		sb.sendTo(pickedURI, wire.WireMessage{
			Kind: wire.KindHandleFetchEntry,
			HandleFetchEntry: &wire.HandleFetchEntry{
				SpaceAddress: conn.space,
				EntryAddress: entryAddr,
				ToAgent:      picked,
				Reason:       wire.ForwardFetch(signerAgent),
			},
		})
	}
}

// handleFetchEntryResult implements §4.9's two FetchReason branches.
func (sb *Switchboard) handleFetchEntryResult(conn *connection, space *Space, m *wire.HandleFetchEntryResult, signerAgent address.Address) {
	switch m.Reason.Kind {
	case wire.FetchReasonAuthoring:
		space.AllAspects().Add(m.EntryAddress, m.Aspect.Address())
		sb.broadcastStoreAspect(space, space.OtherMembers(signerAgent), conn.space, signerAgent, m.EntryAddress, m.Aspect)

	case wire.FetchReasonForwardTo:
		if m.Reason.ForwardTo == nil {
			sb.log.Error("switchboard: forward fetch result missing target")
			return
		}
		uri, ok := space.URI(*m.Reason.ForwardTo)
		if !ok {
			sb.log.Warn("switchboard: forward target no longer joined", log.Stringer("agent", *m.Reason.ForwardTo))
			return
		}
		sb.sendTo(uri, wire.WireMessage{
			Kind: wire.KindHandleStoreEntryAspect,
			HandleStoreEntryAspect: &wire.HandleStoreEntryAspect{
				SpaceAddress: conn.space,
				Provider:     signerAgent,
				EntryAddress: m.EntryAddress,
				Aspect:       m.Aspect,
			},
		})
	}
}

func (sb *Switchboard) leave(conn *connection) {
	if conn.phase != phaseJoined {
		return
	}
	space, ok := sb.registry.Get(conn.space)
	if !ok {
		return
	}
	empty := space.Leave(conn.agent)
	if sb.metrics != nil {
		sb.metrics.SpaceMembers.WithLabelValues(conn.space.String()).Set(float64(space.MemberCount()))
	}
	if empty {
		sb.registry.DropIfEmpty(conn.space)
	}
}

func (sb *Switchboard) leaveAll(uri string) {
	conn, ok := sb.conns[uri]
	if !ok {
		return
	}
	sb.leave(conn)
}

// sendTo wraps msg in a SignedWireMessage and sends it. Switchboard-
// originated frames carry a zero Provenance: verification (§4.9) only
// ever applies to inbound agent frames, never to what the relay itself
// sends back.
func (sb *Switchboard) sendTo(uri string, msg wire.WireMessage) {
	b, err := wire.Encode(wire.SignedWireMessage{Message: msg})
	if err != nil {
		sb.log.Error("switchboard: encode failed", log.Err(err))
		return
	}
	if err := sb.transport.Send(uri, b); err != nil {
		sb.log.Warn("switchboard: send failed", log.String("uri", uri), log.Err(err))
	}
}

func (sb *Switchboard) sendErr(uri string, kind wire.ErrKind, message string) {
	sb.sendTo(uri, wire.WireMessage{Kind: wire.KindErr, Err: &wire.Err{Kind: kind, Message: message}})
}

// declaredSpaceOf extracts the space_address a joined-state message
// declares, if any, for the §4.9 "space mismatch" check. Ping/Pong/
// LeaveSpace carry no separately declared space beyond the connection's
// own, so they are exempt.
func declaredSpaceOf(msg wire.WireMessage) (address.Address, bool) {
	switch msg.Kind {
	case wire.KindSendDirectMessage:
		return msg.SendDirectMessage.SpaceAddress, true
	case wire.KindHandleSendDirectMessageResult:
		return msg.HandleSendDirectMessageResult.SpaceAddress, true
	case wire.KindPublishEntry:
		return msg.PublishEntry.SpaceAddress, true
	case wire.KindHandleGetAuthoringEntryListResult:
		return msg.HandleGetAuthoringEntryListResult.SpaceAddress, true
	case wire.KindHandleGetGossipingEntryListResult:
		return msg.HandleGetGossipingEntryListResult.SpaceAddress, true
	case wire.KindHandleFetchEntryResult:
		return msg.HandleFetchEntryResult.SpaceAddress, true
	default:
		return address.Address{}, false
	}
}

// entriesToMap converts the wire's entry->aspect-list shape into an
// aspectmap.Map for diffing against all_aspects (§4.2).
func entriesToMap(entries map[address.Address][]address.Address) *aspectmap.Map {
	out := aspectmap.New()
	for entry, aspects := range entries {
		for _, a := range aspects {
			out.Add(entry, a)
		}
	}
	return out
}
