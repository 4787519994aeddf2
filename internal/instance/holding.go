package instance

import (
	"context"
	"time"

	"github.com/luxfi/log"

	"github.com/lux-nexus/switchboard/internal/action"
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/chain"
	"github.com/lux-nexus/switchboard/internal/dht"
	"github.com/lux-nexus/switchboard/internal/model"
	"github.com/lux-nexus/switchboard/internal/validation"
	"github.com/lux-nexus/switchboard/internal/xset"
)

// holdingTick is how often the holding loop checks the DHT store's
// delay queue for ready items (§4.7).
const holdingTick = 10 * time.Millisecond

// holdingLoop implements §4.7's deferred-validation loop: every tick, pop
// whatever pending items have become ready and re-run their validation,
// either completing them (Pass/Fail) or re-queuing them with a doubled
// back-off (UnresolvedDependencies).
func (i *Instance) holdingLoop(ctx context.Context) {
	ticker := time.NewTicker(holdingTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			i.drainReady(ctx, now)
		}
	}
}

func (i *Instance) drainReady(ctx context.Context, now time.Time) {
	state := i.loop.State()
	for {
		pending, ok := state.DHT.NextQueuedReady(now)
		if !ok {
			return
		}
		i.runHoldingWorkflow(ctx, pending)
	}
}

// ReceiveAspect is the entry point for an aspect arriving from the
// network (a HandleStoreEntryAspect or a gossip/authoring-list fetch
// result): it runs the holding workflow immediately, queuing it for
// later retry only if dependencies are still missing (§4.7).
func (i *Instance) ReceiveAspect(ctx context.Context, entry model.Entry, header model.ChainHeader, kind dht.WorkflowKind) {
	pending := &dht.PendingValidation{Entry: entry, Header: header, Kind: kind}
	i.runHoldingWorkflow(ctx, pending)
}

// runHoldingWorkflow runs built-in Verify plus the zome's validator
// against pending over the remote (DHT-side) package-building path, and
// disposes of the result per §4.5/§4.7: Pass holds the aspect, Fail
// discards it, UnresolvedDependencies re-queues it with a doubled delay.
func (i *Instance) runHoldingWorkflow(ctx context.Context, pending *dht.PendingValidation) {
	entryAddr, aspect, ok := aspectForWorkflow(pending.Kind, pending.Entry, pending.Header, i.loop.State().Chain)
	if !ok {
		i.log.Warn("holding workflow: unrecognized workflow/entry kind combination",
			log.Stringer("workflow", workflowKindStringer(pending.Kind)))
		return
	}

	if out := validation.Verify(pending.Entry, pending.Header); out.Kind != validation.OutcomePass {
		i.log.Debug("holding workflow: built-in verify failed", log.String("reason", out.Reason))
		return
	}

	kindKey := pending.Entry.Kind.String()
	pkgKind := i.zome.PackageKind(kindKey)
	pkg, err := validation.BuildPackage(ctx, pkgKind, pending.Entry, pending.Header, i.fetch, true)
	if err != nil {
		i.requeue(ctx, pending)
		return
	}

	out := validation.RunValidator(ctx, i.zome.Validator(kindKey), pkg)
	switch out.Kind {
	case validation.OutcomePass:
		i.holdAspect(ctx, entryAddr, aspect)
	case validation.OutcomeUnresolvedDependencies:
		if pending.Missing == nil {
			pending.Missing = xset.Of(entryAddr)
		} else {
			pending.Missing.Add(entryAddr)
		}
		i.requeue(ctx, pending)
	case validation.OutcomeFail:
		i.log.Debug("holding workflow: validator rejected entry", log.String("reason", out.Reason))
	}
}

func (i *Instance) requeue(ctx context.Context, pending *dht.PendingValidation) {
	delay := dht.NextDelay(pending.Delay)
	if err := i.loop.Dispatch(ctx, action.Action{
		Kind: action.KindQueueHoldingWorkflow,
		QueueHoldingWorkflow: &action.QueueHoldingWorkflow{
			Pending: pending,
			Delay:   delay,
			Now:     time.Now(),
		},
	}); err != nil {
		i.log.Warn("holding workflow: requeue dispatch failed", log.Err(err))
	}
}

func (i *Instance) holdAspect(ctx context.Context, entryAddr address.Address, aspect model.Aspect) {
	if err := i.loop.Dispatch(ctx, action.Action{
		Kind: action.KindHoldAspect,
		HoldAspect: &action.HoldAspect{
			EntryAddr:  entryAddr,
			AspectAddr: aspect.Address(),
		},
	}); err != nil {
		i.log.Warn("holding workflow: hold-aspect dispatch failed", log.Err(err))
	}
}

// aspectForWorkflow derives the AspectMap filing key and the concrete
// Aspect a holding workflow produces, mirroring internal/authoring's
// publish.go per-kind dispatch (§4.6 steps 5/6) for the DHT-receiving
// side rather than the authoring side. c resolves a LinkRemove's
// LinkAdd back to its base; it may be nil, degrading to filing under
// LinkRef itself when the LinkAdd isn't held locally.
func aspectForWorkflow(kind dht.WorkflowKind, entry model.Entry, header model.ChainHeader, c *chain.Chain) (address.Address, model.Aspect, bool) {
	switch kind {
	case dht.WorkflowHoldEntry:
		if !entry.Kind.Publishable() {
			return address.Address{}, model.Aspect{}, false
		}
		return entry.Address(), model.NewContentAspect(entry, header), true

	case dht.WorkflowHoldLink:
		if entry.Kind != model.KindLinkAdd {
			return address.Address{}, model.Aspect{}, false
		}
		return entry.LinkAdd.Base, model.NewLinkAddAspect(entry, header), true

	case dht.WorkflowRemoveLink:
		if entry.Kind != model.KindLinkRemove {
			return address.Address{}, model.Aspect{}, false
		}
		return linkRemoveFilingAddress(c, entry.LinkRemove.LinkRef), model.NewLinkRemoveAspect(entry, header), true

	case dht.WorkflowHoldUpdate:
		if header.UpdateOrDeleteTarget == nil {
			return address.Address{}, model.Aspect{}, false
		}
		return *header.UpdateOrDeleteTarget, model.NewUpdateAspect(entry, header), true

	case dht.WorkflowHoldDeletion:
		if entry.Kind != model.KindDeletion {
			return address.Address{}, model.Aspect{}, false
		}
		return entry.Deletion.Target, model.NewDeletionAspect(header), true
	}
	return address.Address{}, model.Aspect{}, false
}

// linkRemoveFilingAddress resolves linkRef (the LinkAdd entry's own
// address) back to that LinkAdd's base, so the LinkRemove aspect is
// filed under the same AspectMap key as the original LinkAdd aspect
// (§4.6 "for LinkRemove analogously" to LinkAdd's base-keyed filing).
// When c is nil or doesn't hold the LinkAdd, linkRef itself is used as
// a degraded fallback rather than dropping the aspect.
func linkRemoveFilingAddress(c *chain.Chain, linkRef address.Address) address.Address {
	if c == nil {
		return linkRef
	}
	e, ok := c.GetEntry(linkRef)
	if !ok || e.Kind != model.KindLinkAdd {
		return linkRef
	}
	return e.LinkAdd.Base
}

// workflowKindStringer adapts dht.WorkflowKind to fmt.Stringer for
// structured logging without dht.WorkflowKind needing its own String
// method just for this one call site.
type workflowKindStringer dht.WorkflowKind

func (k workflowKindStringer) String() string {
	switch dht.WorkflowKind(k) {
	case dht.WorkflowHoldEntry:
		return "HoldEntry"
	case dht.WorkflowHoldLink:
		return "HoldLink"
	case dht.WorkflowRemoveLink:
		return "RemoveLink"
	case dht.WorkflowHoldUpdate:
		return "HoldUpdate"
	case dht.WorkflowHoldDeletion:
		return "HoldDeletion"
	default:
		return "Unknown"
	}
}
