// Package authoring implements C8 (§4.6): the workflow an agent runs when
// it wants to add a new entry to its own chain. It strings together
// signing (internal/signer), the local validation package build and
// validator invocation (internal/validation), the chain append
// (internal/chain, via internal/action.Commit), and the publish reducer
// that decides what aspects go out to the network (internal/action.Publish
// / PublishHeader).
package authoring

import (
	"context"
	"fmt"

	"github.com/lux-nexus/switchboard/internal/action"
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/chain"
	"github.com/lux-nexus/switchboard/internal/errs"
	"github.com/lux-nexus/switchboard/internal/model"
	"github.com/lux-nexus/switchboard/internal/signer"
	"github.com/lux-nexus/switchboard/internal/validation"
)

// Request describes one entry an agent wants to author.
type Request struct {
	Entry                model.Entry
	UpdateOrDeleteTarget *address.Address
	Validator            validation.Validator
	PackageKind          validation.PackageKind
}

// RemoteExistsFunc reports whether entryAddr is known to exist somewhere
// on the network — held in this instance's DHT store or fetchable from a
// peer — for step 1's "locally in C3 or fetchable from the network"
// fallback (§4.6). A nil func means no such fallback is wired (every
// link dependency must be on the author's own chain).
type RemoteExistsFunc func(ctx context.Context, entryAddr address.Address) bool

// Workflow runs the 7-step commit workflow of §4.6 against one agent's
// Chain, dispatching the resulting Actions through loop rather than
// mutating Chain directly, so the whole sequence lands on the instance's
// single action-loop goroutine.
type Workflow struct {
	keystore     *signer.Keystore
	keyName      string
	loop         *action.Loop
	remoteExists RemoteExistsFunc
}

// NewWorkflow returns a Workflow that signs with keyName from keystore
// and dispatches onto loop.
func NewWorkflow(keystore *signer.Keystore, keyName string, loop *action.Loop) *Workflow {
	return &Workflow{keystore: keystore, keyName: keyName, loop: loop}
}

// WithRemoteExists wires remoteExists as the network-side fallback for
// step 1's link-dependency check (§4.6), returning w for chaining at
// construction time.
func (w *Workflow) WithRemoteExists(remoteExists RemoteExistsFunc) *Workflow {
	w.remoteExists = remoteExists
	return w
}

// Commit runs req through the full authoring workflow (§4.6):
//  1. check LinkAdd/LinkRemove dependencies are already held
//  2. sign the entry's canonical bytes
//  3. build a local validation package and run req.Validator (plus the
//     built-in Verify structural checks)
//  4. on Pass, dispatch a Commit action (chain append)
//  5. dispatch Publish for the entry's own aspect, if publishable
//  6. dispatch PublishHeader otherwise
//  7. return the committed header
//
// A Fail or UnresolvedDependencies outcome is fatal for authoring (§9
// Open Question #1's resolution: ValidationPending is retryable only for
// DHT-side holding workflows, never for the agent's own authoring path,
// since an agent should already have every dependency needed to validate
// its own entry locally).
func (w *Workflow) Commit(ctx context.Context, c *chain.Chain, req Request) (model.ChainHeader, error) {
	if err := w.checkLinkDependencies(ctx, c, req.Entry); err != nil {
		return model.ChainHeader{}, err
	}

	pre := c.PreflightHeader(req.Entry, nil, req.UpdateOrDeleteTarget)
	signingBytes := model.SigningBytes(req.Entry)
	sig, err := w.keystore.Sign(w.keyName, signingBytes)
	if err != nil {
		return model.ChainHeader{}, fmt.Errorf("authoring: signing: %w", err)
	}
	bundle, ok := w.keystore.Bundle(w.keyName)
	if !ok {
		return model.ChainHeader{}, fmt.Errorf("authoring: no such key %q", w.keyName)
	}
	pre.Provenances = []model.Provenance{{Agent: bundle.Agent(), Signature: sig}}

	if out := validation.Verify(req.Entry, pre); out.Kind != validation.OutcomePass {
		return model.ChainHeader{}, out.ToError()
	}

	pkg, err := validation.BuildPackage(ctx, req.PackageKind, req.Entry, pre, validation.NewLocalFetcher(c), false)
	if err != nil {
		return model.ChainHeader{}, err
	}
	out := validation.RunValidator(ctx, req.Validator, pkg)
	if out.Kind != validation.OutcomePass {
		return model.ChainHeader{}, out.ToError()
	}

	if err := w.loop.Dispatch(ctx, action.Action{
		Kind: action.KindCommit,
		Commit: &action.Commit{
			Entry:                req.Entry,
			Provenances:          pre.Provenances,
			UpdateOrDeleteTarget: req.UpdateOrDeleteTarget,
		},
	}); err != nil {
		return model.ChainHeader{}, err
	}

	if err := w.publish(ctx, c, req.Entry, pre, req.UpdateOrDeleteTarget); err != nil {
		return model.ChainHeader{}, err
	}

	return pre, nil
}

// checkLinkDependencies enforces that a LinkAdd's base and a LinkRemove's
// referenced LinkAdd already exist "somewhere" (§4.6 step 1): on this
// agent's own chain, or — when w.remoteExists is wired — fetchable from
// the network. Only the base needs to exist locally-or-remotely per §4.6;
// the target of a LinkAdd may be any address at all (links can point at
// content this agent has never seen).
func (w *Workflow) checkLinkDependencies(ctx context.Context, c *chain.Chain, entry model.Entry) error {
	switch entry.Kind {
	case model.KindLinkAdd:
		if w.exists(ctx, c, entry.LinkAdd.Base) {
			return nil
		}
		return errs.ErrLinkDependencyMissing
	case model.KindLinkRemove:
		if w.exists(ctx, c, entry.LinkRemove.LinkRef) {
			return nil
		}
		return errs.ErrLinkDependencyMissing
	}
	return nil
}

func (w *Workflow) exists(ctx context.Context, c *chain.Chain, addr address.Address) bool {
	if _, ok := c.GetEntry(addr); ok {
		return true
	}
	return w.remoteExists != nil && w.remoteExists(ctx, addr)
}
