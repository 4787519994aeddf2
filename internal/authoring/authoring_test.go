package authoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/action"
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/chain"
	"github.com/lux-nexus/switchboard/internal/errs"
	"github.com/lux-nexus/switchboard/internal/logging"
	"github.com/lux-nexus/switchboard/internal/model"
	"github.com/lux-nexus/switchboard/internal/signer"
	"github.com/lux-nexus/switchboard/internal/validation"
)

func newHarness(t *testing.T) (*chain.Chain, *action.Loop, *Workflow, context.Context, func()) {
	t.Helper()
	c := chain.New()
	state := action.NewState()
	state.Chain = c
	loop := action.NewLoop(state, logging.New())
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	_, err := ks.Generate("agent")
	require.NoError(t, err)

	wf := NewWorkflow(ks, "agent", loop)
	return c, loop, wf, ctx, cancel
}

func waitForChainLen(t *testing.T, c *chain.Chain, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.Len() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("chain never reached length %d (at %d)", n, c.Len())
}

func passValidator(ctx context.Context, pkg validation.Package) validation.Outcome {
	return validation.Outcome{Kind: validation.OutcomePass}
}

func TestCommitAppPublishesContentAspect(t *testing.T) {
	c, loop, wf, ctx, cancel := newHarness(t)
	defer cancel()

	header, err := wf.Commit(ctx, c, Request{
		Entry:       model.NewApp("note", []byte("hi")),
		PackageKind: validation.PackageEntry,
		Validator:   passValidator,
	})
	require.NoError(t, err)
	waitForChainLen(t, c, 1)

	require.Eventually(t, func() bool {
		return loop.State().AllAspects.Has(header.EntryAddress, model.NewContentAspect(model.NewApp("note", []byte("hi")), header).Address())
	}, time.Second, time.Millisecond)
}

func TestCommitFailsValidation(t *testing.T) {
	c, _, wf, ctx, cancel := newHarness(t)
	defer cancel()

	_, err := wf.Commit(ctx, c, Request{
		Entry:       model.NewApp("note", []byte("hi")),
		PackageKind: validation.PackageEntry,
		Validator: func(ctx context.Context, pkg validation.Package) validation.Outcome {
			return validation.Outcome{Kind: validation.OutcomeFail, Reason: "nope"}
		},
	})
	require.Error(t, err)
	require.Equal(t, 0, c.Len())
}

func TestCommitLinkAddMissingDependencyFails(t *testing.T) {
	c, _, wf, ctx, cancel := newHarness(t)
	defer cancel()

	_, err := wf.Commit(ctx, c, Request{
		Entry: model.NewLinkAdd(model.LinkAdd{
			Base:   [32]byte{9},
			Target: [32]byte{8},
			Type:   "likes",
		}),
		PackageKind: validation.PackageEntry,
	})
	require.ErrorIs(t, err, errs.ErrLinkDependencyMissing)
}

func TestCommitUpdatePublishesUnderPriorEntry(t *testing.T) {
	c, loop, wf, ctx, cancel := newHarness(t)
	defer cancel()

	original := model.NewApp("note", []byte("v1"))
	_, err := wf.Commit(ctx, c, Request{Entry: original, PackageKind: validation.PackageEntry, Validator: passValidator})
	require.NoError(t, err)
	waitForChainLen(t, c, 1)

	updated := model.NewApp("note", []byte("v2"))
	target := original.Address()
	header, err := wf.Commit(ctx, c, Request{
		Entry:                updated,
		UpdateOrDeleteTarget: &target,
		PackageKind:          validation.PackageEntry,
		Validator:            passValidator,
	})
	require.NoError(t, err)
	waitForChainLen(t, c, 2)

	require.Eventually(t, func() bool {
		return loop.State().AllAspects.Has(target, model.NewUpdateAspect(updated, header).Address())
	}, time.Second, time.Millisecond)
	require.False(t, loop.State().AllAspects.Has(updated.Address(), model.NewContentAspect(updated, header).Address()))
}

func TestCommitLinkRemovePublishesUnderBase(t *testing.T) {
	c, loop, wf, ctx, cancel := newHarness(t)
	defer cancel()

	base := model.NewApp("post", []byte("base"))
	baseHeader, err := wf.Commit(ctx, c, Request{Entry: base, PackageKind: validation.PackageEntry, Validator: passValidator})
	require.NoError(t, err)
	waitForChainLen(t, c, 1)

	linkAdd := model.NewLinkAdd(model.LinkAdd{Base: base.Address(), Target: [32]byte{1}, Type: "likes"})
	_, err = wf.Commit(ctx, c, Request{Entry: linkAdd, PackageKind: validation.PackageEntry})
	require.NoError(t, err)
	waitForChainLen(t, c, 2)

	linkRemove := model.NewLinkRemove(model.LinkRemove{LinkRef: linkAdd.Address(), Targets: []address.Address{{1}}})
	_ = baseHeader
	removeHeader, err := wf.Commit(ctx, c, Request{Entry: linkRemove, PackageKind: validation.PackageEntry})
	require.NoError(t, err)
	waitForChainLen(t, c, 3)

	removeAspectAddr := model.NewLinkRemoveAspect(linkRemove, removeHeader).Address()
	require.Eventually(t, func() bool {
		for _, a := range loop.State().AllAspects.Aspects(base.Address()) {
			if a == removeAspectAddr {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond, "a LinkRemove aspect must be filed under the LinkAdd's base, the same key the original LinkAdd aspect used")
}
