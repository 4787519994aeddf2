package authoring

import (
	"context"

	"github.com/lux-nexus/switchboard/internal/action"
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/chain"
	"github.com/lux-nexus/switchboard/internal/model"
)

// publish implements §4.6 step 5/6: decide which aspect(s) this entry
// produces and dispatch Publish/PublishHeader for each, by entry kind.
// SPEC_FULL.md's Supplemented Feature #5 calls for explicit per-kind
// dispatch here (author_update_entry and author_remove_link each carry
// their own aspect-filing rule) rather than one generic "publish whatever
// this entry is" branch, since update/deletion/link-remove aspects are
// filed under a *different* entry address than the authored entry's own.
func (w *Workflow) publish(ctx context.Context, c *chain.Chain, entry model.Entry, header model.ChainHeader, updateOrDeleteTarget *address.Address) error {
	switch entry.Kind {
	case model.KindLinkRemove:
		// A LinkRemove aspect is filed under the base entry of the
		// LinkAdd it retracts, not under the LinkRemove entry's own
		// address, so peers holding that base learn the link is gone
		// (§4.6 "for LinkRemove analogously" to LinkAdd's base filing).
		base := entry.LinkRemove.LinkRef
		if linkAdd, ok := c.GetEntry(entry.LinkRemove.LinkRef); ok && linkAdd.Kind == model.KindLinkAdd {
			base = linkAdd.LinkAdd.Base
		}
		return w.dispatchAspect(ctx, base, model.NewLinkRemoveAspect(entry, header), true)

	case model.KindLinkAdd:
		return w.dispatchAspect(ctx, entry.LinkAdd.Base, model.NewLinkAddAspect(entry, header), true)

	case model.KindDeletion:
		return w.dispatchAspect(ctx, entry.Deletion.Target, model.NewDeletionAspect(header), true)

	default:
		if updateOrDeleteTarget != nil {
			// author_update_entry (SPEC_FULL.md Supplemented Feature #5):
			// an update to a generic entry files its Update aspect under
			// the *prior* entry's address, not its own, so peers holding
			// the old entry learn it has been superseded.
			return w.dispatchAspect(ctx, *updateOrDeleteTarget, model.NewUpdateAspect(entry, header), true)
		}
		if !entry.Kind.Publishable() {
			return w.dispatchHeaderOnly(ctx, entry.Address(), header)
		}
		return w.dispatchAspect(ctx, entry.Address(), model.NewContentAspect(entry, header), true)
	}
}

func (w *Workflow) dispatchAspect(ctx context.Context, entryAddr address.Address, aspect model.Aspect, broadcast bool) error {
	return w.loop.Dispatch(ctx, action.Action{
		Kind: action.KindPublish,
		Publish: &action.Publish{
			EntryAddr: entryAddr,
			Aspect:    aspect,
			Broadcast: broadcast,
		},
	})
}

func (w *Workflow) dispatchHeaderOnly(ctx context.Context, entryAddr address.Address, header model.ChainHeader) error {
	return w.loop.Dispatch(ctx, action.Action{
		Kind: action.KindPublishHeader,
		PublishHeader: &action.PublishHeader{
			EntryAddr: entryAddr,
			Header:    header,
		},
	})
}
