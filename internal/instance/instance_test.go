package instance

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/action"
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/authoring"
	"github.com/lux-nexus/switchboard/internal/cas"
	"github.com/lux-nexus/switchboard/internal/dht"
	"github.com/lux-nexus/switchboard/internal/eav"
	"github.com/lux-nexus/switchboard/internal/model"
	"github.com/lux-nexus/switchboard/internal/signer"
	"github.com/lux-nexus/switchboard/internal/validation"
)

// scriptedZome reports outcome for the first failBefore calls to its
// validator and validation.OutcomePass after that, letting tests exercise
// §4.7's requeue-then-resolve path deterministically.
type scriptedZome struct {
	failBefore int32
	calls      int32
}

func (z *scriptedZome) Init(context.Context) error { return nil }

func (z *scriptedZome) Validator(string) validation.Validator {
	return func(ctx context.Context, pkg validation.Package) validation.Outcome {
		n := atomic.AddInt32(&z.calls, 1)
		if n <= z.failBefore {
			return validation.Outcome{Kind: validation.OutcomeUnresolvedDependencies, MissingCount: 1}
		}
		return validation.Outcome{Kind: validation.OutcomePass}
	}
}

func (z *scriptedZome) PackageKind(string) validation.PackageKind { return validation.PackageEntry }

func (z *scriptedZome) Receive(context.Context, address.Address, []byte) ([]byte, error) {
	return nil, nil
}

func (z *scriptedZome) Call(context.Context, address.Address, string, string, json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func passValidator(ctx context.Context, pkg validation.Package) validation.Outcome {
	return validation.Outcome{Kind: validation.OutcomePass}
}

func newSignedEntry(t *testing.T, ks *signer.Keystore, keyName string) (model.Entry, model.ChainHeader) {
	t.Helper()
	entry := model.NewApp("note", []byte("hello"))
	header := model.ChainHeader{EntryType: model.KindApp, EntryAddress: entry.Address()}
	sig, err := ks.Sign(keyName, model.SigningBytes(entry))
	require.NoError(t, err)
	bundle, ok := ks.Bundle(keyName)
	require.True(t, ok)
	header.Provenances = []model.Provenance{{Agent: bundle.Agent(), Signature: sig}}
	return entry, header
}

func TestReceiveAspectHoldsImmediatelyOnPass(t *testing.T) {
	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	_, err := ks.Generate("a")
	require.NoError(t, err)

	inst := New(Config{ID: "i1", KeyName: "a", Keystore: ks, Zome: &scriptedZome{}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inst.Loop().Run(ctx)

	entry, header := newSignedEntry(t, ks, "a")
	inst.ReceiveAspect(ctx, entry, header, dht.WorkflowHoldEntry)

	aspectAddr := model.NewContentAspect(entry, header).Address()
	require.Eventually(t, func() bool {
		return inst.Loop().State().DHT.HasAspect(entry.Address(), aspectAddr)
	}, time.Second, 5*time.Millisecond)
}

func TestHoldingLoopRetriesUntilResolved(t *testing.T) {
	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	_, err := ks.Generate("a")
	require.NoError(t, err)

	zome := &scriptedZome{failBefore: 1}
	inst := New(Config{ID: "i1", KeyName: "a", Keystore: ks, Zome: zome})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inst.Loop().Run(ctx)
	go inst.holdingLoop(ctx)

	entry, header := newSignedEntry(t, ks, "a")
	inst.ReceiveAspect(ctx, entry, header, dht.WorkflowHoldEntry)

	require.Eventually(t, func() bool {
		return inst.Loop().State().DHT.Len() == 1
	}, time.Second, 5*time.Millisecond, "first pending failure should be queued for retry")

	aspectAddr := model.NewContentAspect(entry, header).Address()
	require.Eventually(t, func() bool {
		return inst.Loop().State().DHT.HasAspect(entry.Address(), aspectAddr)
	}, 2*time.Second, 10*time.Millisecond, "retry should eventually hold the aspect")
}

func TestCommitLinkAddAllowsDHTHeldBase(t *testing.T) {
	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	_, err := ks.Generate("a")
	require.NoError(t, err)

	inst := New(Config{ID: "i1", KeyName: "a", Keystore: ks, Zome: &scriptedZome{}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inst.Loop().Run(ctx)

	base := model.NewApp("post", []byte("base"))
	inst.Loop().State().DHT.HoldAspect(base.Address(), model.NewContentAspect(base, model.ChainHeader{}).Address())

	linkAdd := model.NewLinkAdd(model.LinkAdd{Base: base.Address(), Target: address.Address{1}, Type: "likes"})
	_, err = inst.Authoring().Commit(ctx, inst.Chain(), authoring.Request{
		Entry:       linkAdd,
		PackageKind: validation.PackageEntry,
	})
	require.NoError(t, err, "a base held in the DHT but absent from the chain should satisfy §4.6 step 1")
}

func TestCommitLinkAddRejectsUnknownBase(t *testing.T) {
	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	_, err := ks.Generate("a")
	require.NoError(t, err)

	inst := New(Config{ID: "i1", KeyName: "a", Keystore: ks, Zome: &scriptedZome{}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inst.Loop().Run(ctx)

	linkAdd := model.NewLinkAdd(model.LinkAdd{Base: address.Address{9}, Target: address.Address{1}, Type: "likes"})
	_, err = inst.Authoring().Commit(ctx, inst.Chain(), authoring.Request{
		Entry:       linkAdd,
		PackageKind: validation.PackageEntry,
	})
	require.Error(t, err)
}

func TestDebugDispatchesAndTracesOnSignalBus(t *testing.T) {
	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	_, err := ks.Generate("a")
	require.NoError(t, err)

	bus := action.NewSignalBus()
	inst := New(Config{ID: "i1", KeyName: "a", Keystore: ks, Zome: &scriptedZome{}, SignalBus: bus})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inst.Loop().Run(ctx)

	seen := make(chan string, 1)
	cancelSub := bus.Subscribe(func(s action.Signal) {
		if s.Action != nil && s.Action.Kind == action.KindDebug {
			seen <- s.Action.Debug.Message
		}
	})
	defer cancelSub()

	require.NoError(t, inst.Debug(ctx, "hello from zome"))

	select {
	case msg := <-seen:
		require.Equal(t, "hello from zome", msg)
	case <-time.After(time.Second):
		t.Fatal("debug action never reached the signal bus")
	}
}

func TestCommitPersistsEntryToCAS(t *testing.T) {
	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	_, err := ks.Generate("a")
	require.NoError(t, err)

	store := cas.New(memdb.New())
	inst := New(Config{ID: "i1", KeyName: "a", Keystore: ks, Zome: &scriptedZome{}, CAS: store})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inst.Loop().Run(ctx)

	entry := model.NewApp("note", []byte("hello"))
	_, err = inst.Authoring().Commit(ctx, inst.Chain(), authoring.Request{
		Entry:       entry,
		PackageKind: validation.PackageEntry,
		Validator:   passValidator,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok, err := store.Get(ctx, entry.Address())
		return err == nil && ok
	}, time.Second, 5*time.Millisecond, "a committed entry should land in the content store")
}

func TestLinkAddThenRemoveUpdatesEAVIndex(t *testing.T) {
	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	_, err := ks.Generate("a")
	require.NoError(t, err)

	index := eav.New(memdb.New())
	inst := New(Config{ID: "i1", KeyName: "a", Keystore: ks, Zome: &scriptedZome{}, EAV: index})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inst.Loop().Run(ctx)

	base := model.NewApp("post", []byte("base"))
	_, err = inst.Authoring().Commit(ctx, inst.Chain(), authoring.Request{Entry: base, PackageKind: validation.PackageEntry, Validator: passValidator})
	require.NoError(t, err)

	target := address.Address{9}
	linkAdd := model.NewLinkAdd(model.LinkAdd{Base: base.Address(), Target: target, Type: "likes"})
	_, err = inst.Authoring().Commit(ctx, inst.Chain(), authoring.Request{Entry: linkAdd, PackageKind: validation.PackageEntry})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		links, err := inst.GetLinks(base.Address(), "likes")
		return err == nil && len(links) == 1 && links[0] == target
	}, time.Second, 5*time.Millisecond, "a held LinkAdd should appear in GetLinks")

	linkRemove := model.NewLinkRemove(model.LinkRemove{LinkRef: linkAdd.Address(), Targets: []address.Address{target}})
	_, err = inst.Authoring().Commit(ctx, inst.Chain(), authoring.Request{Entry: linkRemove, PackageKind: validation.PackageEntry})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		links, err := inst.GetLinks(base.Address(), "likes")
		return err == nil && len(links) == 0
	}, time.Second, 5*time.Millisecond, "a processed LinkRemove should retract the link from the index")
}

func TestAspectForWorkflowRejectsMismatchedKind(t *testing.T) {
	entry := model.NewLinkRemove(model.LinkRemove{LinkRef: model.NewApp("x", nil).Address()})
	header := model.ChainHeader{}
	_, _, ok := aspectForWorkflow(dht.WorkflowHoldLink, entry, header, nil)
	require.False(t, ok, "a LinkRemove entry cannot satisfy a HoldLink workflow")
}
