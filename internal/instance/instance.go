package instance

import (
	"context"
	"fmt"

	"github.com/luxfi/log"

	"github.com/lux-nexus/switchboard/internal/action"
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/authoring"
	"github.com/lux-nexus/switchboard/internal/capability"
	"github.com/lux-nexus/switchboard/internal/cas"
	"github.com/lux-nexus/switchboard/internal/chain"
	"github.com/lux-nexus/switchboard/internal/eav"
	"github.com/lux-nexus/switchboard/internal/logging"
	"github.com/lux-nexus/switchboard/internal/metrics"
	"github.com/lux-nexus/switchboard/internal/model"
	"github.com/lux-nexus/switchboard/internal/signer"
)

// Config describes one instance at construction time: which agent key
// signs its entries, which zome governs validation, and the shared
// collaborators (metrics, signal bus, logger) it reports through.
type Config struct {
	ID          string
	DNAID       string
	KeyName     string
	Keystore    *signer.Keystore
	Zome        ZomeCallbacks
	HeaderFetch HeaderFetchFunc
	Metrics     *metrics.Metrics
	SignalBus   *action.SignalBus
	Log         log.Logger

	// CAS durably persists every committed entry's canonical bytes, and
	// EAV indexes LinkAdd/LinkRemove aspects for get_links-style queries
	// (C2, SPEC_FULL.md's domain-stack wiring of github.com/luxfi/database).
	// Both are optional; a nil value keeps the instance purely in-memory.
	CAS *cas.Store
	EAV *eav.Index
}

// Instance is one running (agent, DNA) pair (GLOSSARY "Instance"): its
// own chain, DHT store and action loop, plus the authoring workflow and
// capability resolver that sit in front of them. internal/conductor
// hosts any number of these side by side (C10).
type Instance struct {
	id    string
	dnaID string
	log   log.Logger
	met   *metrics.Metrics
	sig   *action.SignalBus

	zome  ZomeCallbacks
	fetch remoteFetcher

	cas *cas.Store
	eav *eav.Index

	keystore *signer.Keystore
	keyName  string

	loop       *action.Loop
	authoring  *authoring.Workflow
	capability *capability.Resolver

	unsubscribe func()
	holdCancel  context.CancelFunc
}

// New wires up a new, not-yet-running Instance from cfg.
func New(cfg Config) *Instance {
	logger := cfg.Log
	if logger == nil {
		logger = logging.New()
	}
	zome := cfg.Zome
	if zome == nil {
		zome = NoOpZome{}
	}

	state := action.NewState()
	loop := action.NewLoop(state, logger)

	inst := &Instance{
		id:         cfg.ID,
		dnaID:      cfg.DNAID,
		log:        logger,
		met:        cfg.Metrics,
		sig:        cfg.SignalBus,
		zome:       zome,
		fetch:      remoteFetcher{fetch: cfg.HeaderFetch},
		cas:        cfg.CAS,
		eav:        cfg.EAV,
		keystore:   cfg.Keystore,
		keyName:    cfg.KeyName,
		loop:       loop,
		authoring:  authoring.NewWorkflow(cfg.Keystore, cfg.KeyName, loop),
		capability: capability.NewResolver(state.Chain),
	}
	inst.authoring.WithRemoteExists(func(ctx context.Context, addr address.Address) bool {
		if len(state.DHT.HeldAspects(addr)) > 0 {
			return true
		}
		_, ok, err := inst.fetch.FetchHeader(ctx, addr)
		return err == nil && ok
	})
	inst.unsubscribe = loop.Observe(inst.observe)
	return inst
}

// ID returns the instance's configured identifier (§6 `instances[i].id`).
func (i *Instance) ID() string { return i.id }

// Loop exposes the underlying action loop for the conductor's admin
// operations (chain/DHT introspection) and for tests.
func (i *Instance) Loop() *action.Loop { return i.loop }

// Authoring exposes the authoring workflow for the JSON-RPC `call`
// dispatcher (internal/rpcserver).
func (i *Instance) Authoring() *authoring.Workflow { return i.authoring }

// Capability exposes the capability resolver for `call` token checks.
func (i *Instance) Capability() *capability.Resolver { return i.capability }

// Chain exposes the instance's chain for the rpcserver's `call` dispatch
// to read back entries (e.g. to build a Request.Entry referencing prior
// state) and for admin introspection.
func (i *Instance) Chain() *chain.Chain { return i.loop.State().Chain }

// DNAID returns the DNA this instance's zome was built for, so the
// rpcserver's `info/instances` method can report it without threading a
// parallel lookup through the conductor (§4.10).
func (i *Instance) DNAID() string { return i.dnaID }

// Sign signs payload with this instance's agent key (§4.10 `agent/sign`).
// The keystore is shared by every instance of the same agent and
// internally serializes concurrent signs (§5 "Shared-resource policy"),
// so this is safe to call from any number of interface goroutines.
func (i *Instance) Sign(payload []byte) ([]byte, error) {
	return i.keystore.Sign(i.keyName, payload)
}

// Zome exposes the zome callbacks, e.g. for the rpcserver's bridge
// Receive dispatch.
func (i *Instance) Zome() ZomeCallbacks { return i.zome }

// Debug is the host-function side of the debug callback contract
// (SPEC_FULL.md Supplemented Feature #4): a zome's Call implementation
// invokes this instead of reaching around the action loop directly,
// dispatching a KindDebug action that observe() forwards to the
// instance's logger at Info level. Like Sign, it is the thin surface a
// WASM host environment would bind a zome's debug() host import to; the
// engine itself stays out of scope (§1).
func (i *Instance) Debug(ctx context.Context, message string) error {
	return i.loop.Dispatch(ctx, action.Action{Kind: action.KindDebug, Debug: &action.Debug{Message: message}})
}

// DumpReport is the snapshot a state-dump job (§5 "State-dump job (every
// 10s)", supplemented per SPEC_FULL.md from original_source/core/src/
// state_dump.rs) renders for one instance: enough to eyeball liveness
// without walking the chain or DHT store directly.
type DumpReport struct {
	InstanceID       string
	ChainLength      int
	HeldAspectCount  int
	PendingCount     int
	TopHeaderAddress string
}

// StateDump renders a DumpReport for this instance. It reads the action
// loop's current state directly rather than dispatching an action,
// matching §4.4's rule that observation is not itself a state mutation.
func (i *Instance) StateDump() DumpReport {
	state := i.loop.State()
	report := DumpReport{
		InstanceID:      i.id,
		ChainLength:     state.Chain.Len(),
		HeldAspectCount: state.DHT.AllAspects().Count(),
		PendingCount:    state.DHT.Len(),
	}
	if top, ok := state.Chain.TopHeader(); ok {
		report.TopHeaderAddress = top.Address().String()
	}
	return report
}

// Agent returns this instance's agent address, recovered from its
// keystore's public key bundle (§4.8 bridge calls need the caller's
// agent address to pass to the callee's Receive).
func (i *Instance) Agent() (address.Address, bool) {
	bundle, ok := i.keystore.Bundle(i.keyName)
	if !ok {
		return address.Address{}, false
	}
	return bundle.Agent(), true
}

// Start runs the instance's action loop and holding loop until ctx is
// canceled. It blocks until both have exited; callers typically run it
// in its own goroutine.
func (i *Instance) Start(ctx context.Context) error {
	if err := i.zome.Init(ctx); err != nil {
		return fmt.Errorf("instance %s: zome init: %w", i.id, err)
	}

	holdCtx, cancel := context.WithCancel(ctx)
	i.holdCancel = cancel

	done := make(chan struct{})
	go func() {
		i.holdingLoop(holdCtx)
		close(done)
	}()

	i.loop.Run(ctx)
	cancel()
	<-done
	return nil
}

// Stop unsubscribes the instance's loop observer and halts its holding
// loop without waiting for Start's goroutines to exit (that is ctx's
// job); it is safe to call Stop more than once.
func (i *Instance) Stop() {
	if i.unsubscribe != nil {
		i.unsubscribe()
	}
	if i.holdCancel != nil {
		i.holdCancel()
	}
	i.loop.Stop()
}

// observe mirrors every applied action onto the metrics/signal-bus
// collaborators, matching the conductor's "Trace signal per action" rule
// (§4.8 Signal multiplexer) without the action package itself needing to
// know about either.
func (i *Instance) observe(a action.Action) {
	if i.sig != nil {
		i.sig.Publish(action.Signal{Kind: action.SignalTrace, Instance: i.id, Action: &a})
	}
	switch a.Kind {
	case action.KindDebug:
		i.log.Info(a.Debug.Message, log.String("instance", i.id))
	case action.KindCommit:
		i.persistCommit(a.Commit)
	case action.KindPublish:
		i.indexLinkAspect(a.Publish.Aspect)
	}
	if i.met == nil {
		return
	}
	switch a.Kind {
	case action.KindHoldAspect:
		i.met.PendingValidation.WithLabelValues(i.id).Set(float64(i.loop.State().DHT.Len()))
	case action.KindQueueHoldingWorkflow:
		i.met.PendingValidation.WithLabelValues(i.id).Set(float64(i.loop.State().DHT.Len()))
	}
}

// persistCommit writes a freshly committed entry's canonical bytes to
// the content-addressable store (C2), when one is configured. A write
// failure is logged rather than propagated: persistence is a durability
// concern layered on top of the in-memory chain, which already holds the
// entry authoritatively for this process's lifetime.
func (i *Instance) persistCommit(c *action.Commit) {
	if i.cas == nil || c == nil {
		return
	}
	if _, err := i.cas.Put(context.Background(), model.SigningBytes(c.Entry)); err != nil {
		i.log.Warn("content store: persisting committed entry failed", log.Err(err))
	}
}

// indexLinkAspect maintains the entity-attribute-value link index (C2)
// as LinkAdd/LinkRemove aspects are published, when one is configured,
// so get_links-style queries (Instance.GetLinks) don't need to scan the
// AspectMap. It is a best-effort projection of the AspectMap, not a
// second source of truth: losing it loses query convenience, not data.
func (i *Instance) indexLinkAspect(aspect model.Aspect) {
	if i.eav == nil {
		return
	}
	switch aspect.Kind {
	case model.AspectLinkAdd:
		l := aspect.Link.LinkEntry.LinkAdd
		if l == nil {
			return
		}
		if err := i.eav.Add(l.Base, linkAttribute(l.Type), l.Target); err != nil {
			i.log.Warn("link index: add failed", log.Err(err))
		}
	case model.AspectLinkRemove:
		lr := aspect.Link.LinkEntry.LinkRemove
		if lr == nil {
			return
		}
		linkAdd, ok := i.loop.State().Chain.GetEntry(lr.LinkRef)
		if !ok || linkAdd.Kind != model.KindLinkAdd {
			return
		}
		base, typ := linkAdd.LinkAdd.Base, linkAdd.LinkAdd.Type
		targets := lr.Targets
		if len(targets) == 0 {
			held, err := i.eav.Query(base, linkAttribute(typ))
			if err != nil {
				i.log.Warn("link index: query for wildcard remove failed", log.Err(err))
				return
			}
			targets = held
		}
		for _, target := range targets {
			if err := i.eav.Remove(base, linkAttribute(typ), target); err != nil {
				i.log.Warn("link index: remove failed", log.Err(err))
			}
		}
	}
}

// linkAttribute namespaces a link type as an EAV attribute so it can
// never collide with some other entity-attribute scheme sharing the
// same underlying database.
func linkAttribute(linkType string) string { return "link:" + linkType }

// GetLinks is the host-function side of a get_links query: every target
// address a zome has linked from base under linkType, per the EAV index
// (C2). It returns an empty, nil-error result when no index is wired,
// matching the rest of this package's "optional collaborator" pattern
// rather than forcing every instance to carry persistence.
func (i *Instance) GetLinks(base address.Address, linkType string) ([]address.Address, error) {
	if i.eav == nil {
		return nil, nil
	}
	return i.eav.Query(base, linkAttribute(linkType))
}
