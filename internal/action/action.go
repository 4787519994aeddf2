// Package action implements C6, the action/reducer core (§5): a single
// mutable State, a closed set of typed Action variants that describe every
// way State may change, and a pure Reduce function. Every other component
// (authoring, validation, dht, switchboard) expresses its effect on
// instance state as an Action and dispatches it through a Loop rather than
// mutating chain/aspectmap/dht fields directly, so that state transitions
// stay serialized onto one goroutine per instance (§5 "single-writer").
package action

import (
	"time"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/aspectmap"
	"github.com/lux-nexus/switchboard/internal/chain"
	"github.com/lux-nexus/switchboard/internal/dht"
	"github.com/lux-nexus/switchboard/internal/model"
)

// Kind discriminates the variants of Action.
type Kind uint8

const (
	KindCommit Kind = iota
	KindPublish
	KindPublishHeader
	KindQueueHoldingWorkflow
	KindHoldAspect
	KindRespondGossipList
	KindDebug
)

func (k Kind) String() string {
	switch k {
	case KindCommit:
		return "Commit"
	case KindPublish:
		return "Publish"
	case KindPublishHeader:
		return "PublishHeader"
	case KindQueueHoldingWorkflow:
		return "QueueHoldingWorkflow"
	case KindHoldAspect:
		return "HoldAspect"
	case KindRespondGossipList:
		return "RespondGossipList"
	case KindDebug:
		return "Debug"
	default:
		return "Unknown"
	}
}

// Commit appends entry to the local chain under provenances (§4.6 step 3).
type Commit struct {
	Entry                model.Entry
	Provenances          []model.Provenance
	UpdateOrDeleteTarget *address.Address
}

// Publish records an aspect as held locally and, if Broadcast is set,
// marks it for outbound gossip (§4.6 step 5). EntryAddr is the AspectMap
// key the aspect is filed under, which for link/update/deletion aspects
// differs from the aspect's own content address.
type Publish struct {
	EntryAddr address.Address
	Aspect    model.Aspect
	Broadcast bool
}

// PublishHeader records a Header aspect for an entry kind that is not
// itself publishable (§4.6 step 6).
type PublishHeader struct {
	EntryAddr address.Address
	Header    model.ChainHeader
}

// QueueHoldingWorkflow enqueues a DHT-side holding workflow pending the
// resolution of Missing dependencies (§4.7). Delay is the back-off to
// apply (see dht.NextDelay) and Now anchors it; Pending.NextRunAt is
// computed by the enqueue itself, not by the caller.
type QueueHoldingWorkflow struct {
	Pending *dht.PendingValidation
	Delay   time.Duration
	Now     time.Time
}

// HoldAspect records that the instance now holds an aspect without
// necessarily having authored it (a gossip response landing locally).
type HoldAspect struct {
	EntryAddr  address.Address
	AspectAddr address.Address
}

// RespondGossipList is a no-op on State, recorded so observers can react
// to a HandleGetGossipingEntryList response having been sent (§4.9). It
// carries no state mutation; it exists purely as a signal carrier.
type RespondGossipList struct {
	ToAgent address.Address
}

// Debug runs a zome debug callback's side-effect request (SPEC_FULL.md
// Supplemented Feature #4); State itself is unaffected, but observers may
// log or relay the message.
type Debug struct {
	Message string
}

// Action is the tagged union of every way State can change. Exactly one
// field matching Kind is populated, mirroring model.Entry/model.Aspect.
type Action struct {
	Kind Kind

	Commit               *Commit
	Publish              *Publish
	PublishHeader        *PublishHeader
	QueueHoldingWorkflow  *QueueHoldingWorkflow
	HoldAspect           *HoldAspect
	RespondGossipList    *RespondGossipList
	Debug                *Debug
}

// State is the full mutable state of one instance's core (§5). It is
// mutated only by Reduce, always called from the instance's single action
// loop goroutine.
type State struct {
	Chain      *chain.Chain
	AllAspects *aspectmap.Map
	DHT        *dht.Store
}

// NewState returns a fresh, empty State.
func NewState() *State {
	return &State{
		Chain:      chain.New(),
		AllAspects: aspectmap.New(),
		DHT:        dht.New(),
	}
}

// Reduce applies a to s in place and returns a, unmodified, for the Loop
// to hand to observers. Reduce never returns an error: by the time an
// Action reaches here, every precondition (validation, signature,
// dependency check) has already been decided by the caller. Reduce only
// ever records what was already decided.
func Reduce(s *State, a Action) Action {
	switch a.Kind {
	case KindCommit:
		c := a.Commit
		s.Chain.Append(c.Entry, c.Provenances, c.UpdateOrDeleteTarget)

	case KindPublish:
		p := a.Publish
		s.AllAspects.Add(p.EntryAddr, p.Aspect.Address())

	case KindPublishHeader:
		p := a.PublishHeader
		s.AllAspects.Add(p.EntryAddr, model.NewHeaderAspect(p.Header).Address())

	case KindQueueHoldingWorkflow:
		q := a.QueueHoldingWorkflow
		s.DHT.Enqueue(q.Pending, q.Delay, q.Now)

	case KindHoldAspect:
		h := a.HoldAspect
		s.DHT.HoldAspect(h.EntryAddr, h.AspectAddr)

	case KindRespondGossipList, KindDebug:
		// No state mutation; these exist purely to flow through
		// observers (metrics, logging, signal bus).
	}
	return a
}
