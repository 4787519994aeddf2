package switchboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/logging"
	"github.com/lux-nexus/switchboard/internal/model"
	"github.com/lux-nexus/switchboard/internal/signer"
	"github.com/lux-nexus/switchboard/internal/wire"
)

type testAgent struct {
	keystore *signer.Keystore
	name     string
	addr     address.Address
	client   *MemClient
}

func newTestAgent(t *testing.T, transport *MemTransport, uri, keyName string) *testAgent {
	t.Helper()
	ks := signer.NewKeystore()
	require.NoError(t, ks.Unlock("pw"))
	bundle, err := ks.Generate(keyName)
	require.NoError(t, err)
	return &testAgent{
		keystore: ks,
		name:     keyName,
		addr:     bundle.Agent(),
		client:   transport.Connect(uri),
	}
}

func (a *testAgent) send(t *testing.T, msg wire.WireMessage) {
	t.Helper()
	sig, err := a.keystore.Sign(a.name, wire.SigningBytes(msg))
	require.NoError(t, err)
	b, err := wire.Encode(wire.SignedWireMessage{
		Message:    msg,
		Provenance: wire.Provenance{Agent: a.addr, Signature: sig},
	})
	require.NoError(t, err)
	a.client.Send(b)
}

func (a *testAgent) sendWrongKey(t *testing.T, wrong *testAgent, msg wire.WireMessage) {
	t.Helper()
	sig, err := wrong.keystore.Sign(wrong.name, wire.SigningBytes(msg))
	require.NoError(t, err)
	b, err := wire.Encode(wire.SignedWireMessage{
		Message:    msg,
		Provenance: wire.Provenance{Agent: a.addr, Signature: sig}, // claims a's address, signed by wrong's key
	})
	require.NoError(t, err)
	a.client.Send(b)
}

func (a *testAgent) recv(t *testing.T) wire.WireMessage {
	t.Helper()
	select {
	case b := <-a.client.inbox:
		sm, err := wire.Decode(b)
		require.NoError(t, err)
		return sm.Message
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return wire.WireMessage{}
	}
}

func join(t *testing.T, a *testAgent, space address.Address) {
	t.Helper()
	a.send(t, wire.WireMessage{
		Kind:      wire.KindJoinSpace,
		JoinSpace: &wire.JoinSpace{SpaceAddress: space, Agent: a.addr},
	})
	// drain the two reconciliation requests every successful join triggers.
	first := a.recv(t)
	second := a.recv(t)
	kinds := map[wire.MessageKind]bool{first.Kind: true, second.Kind: true}
	require.True(t, kinds[wire.KindHandleGetAuthoringEntryList])
	require.True(t, kinds[wire.KindHandleGetGossipingEntryList])
}

func runSwitchboard(t *testing.T) (*Switchboard, *MemTransport) {
	t.Helper()
	transport := NewMemTransport()
	sb := New(transport, logging.New())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sb.Run(ctx)
	return sb, transport
}

func TestJoinCreatesSpaceAndReconciles(t *testing.T) {
	sb, transport := runSwitchboard(t)
	space := address.FromBytes([]byte("space"))
	alice := newTestAgent(t, transport, "alice", "alice-key")

	join(t, alice, space)

	require.Equal(t, 1, sb.Registry().Len())
	sp, ok := sb.Registry().Get(space)
	require.True(t, ok)
	require.True(t, sp.Has(alice.addr))
}

func TestDirectMessageRoutesToRecipientOnly(t *testing.T) {
	_, transport := runSwitchboard(t)
	space := address.FromBytes([]byte("space"))
	alice := newTestAgent(t, transport, "alice", "alice-key")
	bob := newTestAgent(t, transport, "bob", "bob-key")
	join(t, alice, space)
	join(t, bob, space)

	alice.send(t, wire.WireMessage{
		Kind: wire.KindSendDirectMessage,
		SendDirectMessage: &wire.SendDirectMessage{
			SpaceAddress: space,
			FromAgent:    alice.addr,
			ToAgent:      bob.addr,
			Payload:      []byte("hi"),
		},
	})

	got := bob.recv(t)
	require.Equal(t, wire.KindHandleSendDirectMessage, got.Kind)
	require.Equal(t, []byte("hi"), got.HandleSendDirectMessage.Payload)
	require.Equal(t, alice.addr, got.HandleSendDirectMessage.FromAgent)

	_, ok := alice.client.TryRecv()
	require.False(t, ok, "sender must receive nothing back beyond the join reconciliation")
}

func TestPublishBroadcastsToEveryoneExceptProvider(t *testing.T) {
	_, transport := runSwitchboard(t)
	space := address.FromBytes([]byte("space"))
	a := newTestAgent(t, transport, "a", "a-key")
	b := newTestAgent(t, transport, "b", "b-key")
	c := newTestAgent(t, transport, "c", "c-key")
	join(t, a, space)
	join(t, b, space)
	join(t, c, space)

	entry := model.NewApp("note", []byte("hello"))
	header := model.ChainHeader{EntryType: model.KindApp, EntryAddress: entry.Address()}
	aspect := model.NewContentAspect(entry, header)

	a.send(t, wire.WireMessage{
		Kind: wire.KindPublishEntry,
		PublishEntry: &wire.PublishEntry{
			SpaceAddress: space,
			Provider:     a.addr,
			EntryAddress: entry.Address(),
			AspectList:   []model.Aspect{aspect},
		},
	})

	gotB := b.recv(t)
	gotC := c.recv(t)
	require.Equal(t, wire.KindHandleStoreEntryAspect, gotB.Kind)
	require.Equal(t, wire.KindHandleStoreEntryAspect, gotC.Kind)
	require.Equal(t, aspect.Address(), gotB.HandleStoreEntryAspect.Aspect.Address())

	_, ok := a.client.TryRecv()
	require.False(t, ok, "provider gets no store-aspect for its own publish")
}

func TestPublishWithZeroAspectsBroadcastsNothing(t *testing.T) {
	_, transport := runSwitchboard(t)
	space := address.FromBytes([]byte("space"))
	a := newTestAgent(t, transport, "a", "a-key")
	b := newTestAgent(t, transport, "b", "b-key")
	join(t, a, space)
	join(t, b, space)

	a.send(t, wire.WireMessage{
		Kind: wire.KindPublishEntry,
		PublishEntry: &wire.PublishEntry{
			SpaceAddress: space,
			Provider:     a.addr,
			EntryAddress: address.FromBytes([]byte("entry")),
			AspectList:   nil,
		},
	})

	_, ok := b.client.TryRecv()
	require.False(t, ok)
}

func TestSignerMismatchOnJoinRejected(t *testing.T) {
	sb, transport := runSwitchboard(t)
	space := address.FromBytes([]byte("space"))
	alice := newTestAgent(t, transport, "alice", "alice-key")
	mallory := newTestAgent(t, transport, "mallory", "mallory-key")

	// mallory's frame claims alice's address but is signed by mallory's
	// key (§8 S5 / boundary behavior).
	alice.sendWrongKey(t, mallory, wire.WireMessage{
		Kind:      wire.KindJoinSpace,
		JoinSpace: &wire.JoinSpace{SpaceAddress: space, Agent: alice.addr},
	})

	got := alice.recv(t)
	require.Equal(t, wire.KindErr, got.Kind)
	require.Equal(t, wire.ErrVerifyFailed, got.Err.Kind)
	require.Equal(t, 0, sb.Registry().Len())
}

func TestMessageWhileInLimboIsBufferedAndErrored(t *testing.T) {
	_, transport := runSwitchboard(t)
	space := address.FromBytes([]byte("space"))
	alice := newTestAgent(t, transport, "alice", "alice-key")

	alice.send(t, wire.WireMessage{Kind: wire.KindPing, Ping: &wire.Ping{}})
	got := alice.recv(t)
	require.Equal(t, wire.KindErr, got.Kind)
	require.Equal(t, wire.ErrMessageWhileInLimbo, got.Err.Kind)

	// Now join; the buffered Ping should be flushed and answered with Pong,
	// ahead of the two reconciliation requests.
	alice.send(t, wire.WireMessage{
		Kind:      wire.KindJoinSpace,
		JoinSpace: &wire.JoinSpace{SpaceAddress: space, Agent: alice.addr},
	})
	seen := map[wire.MessageKind]bool{}
	for i := 0; i < 3; i++ {
		seen[alice.recv(t).Kind] = true
	}
	require.True(t, seen[wire.KindHandleGetAuthoringEntryList])
	require.True(t, seen[wire.KindHandleGetGossipingEntryList])
	require.True(t, seen[wire.KindPong])
}

func TestLeavingLastMemberRemovesSpace(t *testing.T) {
	sb, transport := runSwitchboard(t)
	space := address.FromBytes([]byte("space"))
	alice := newTestAgent(t, transport, "alice", "alice-key")
	join(t, alice, space)
	require.Equal(t, 1, sb.Registry().Len())

	alice.send(t, wire.WireMessage{
		Kind:       wire.KindLeaveSpace,
		LeaveSpace: &wire.LeaveSpace{SpaceAddress: space},
	})

	require.Eventually(t, func() bool {
		return sb.Registry().Len() == 0
	}, time.Second, 10*time.Millisecond)
}
