package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/address"
)

func TestEncodeDecodeRoundTripJoinSpace(t *testing.T) {
	sm := SignedWireMessage{
		Message: WireMessage{
			Kind: KindJoinSpace,
			JoinSpace: &JoinSpace{
				SpaceAddress: address.FromBytes([]byte("space")),
				Agent:        address.FromBytes([]byte("agent")),
			},
		},
		Provenance: Provenance{
			Agent:     address.FromBytes([]byte("agent")),
			Signature: []byte("sig-bytes"),
		},
	}

	b, err := Encode(sm)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, sm, got)
}

func TestEncodeDecodeRoundTripFetchEntryResultForward(t *testing.T) {
	reason := ForwardFetch(address.FromBytes([]byte("third-agent")))
	sm := SignedWireMessage{
		Message: WireMessage{
			Kind: KindHandleFetchEntryResult,
			HandleFetchEntryResult: &HandleFetchEntryResult{
				SpaceAddress: address.FromBytes([]byte("space")),
				EntryAddress: address.FromBytes([]byte("entry")),
				Reason:       reason,
			},
		},
	}

	b, err := Encode(sm)
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)

	require.Equal(t, FetchReasonForwardTo, got.Message.HandleFetchEntryResult.Reason.Kind)
	require.NotNil(t, got.Message.HandleFetchEntryResult.Reason.ForwardTo)
	require.Equal(t, *reason.ForwardTo, *got.Message.HandleFetchEntryResult.Reason.ForwardTo)
}

func TestSigningBytesDeterministic(t *testing.T) {
	msg := WireMessage{Kind: KindPing, Ping: &Ping{}}
	b1 := SigningBytes(msg)
	b2 := SigningBytes(msg)
	require.Equal(t, b1, b2)
}

func TestEncodeDistinguishesPingFromPong(t *testing.T) {
	ping, err := Encode(SignedWireMessage{Message: WireMessage{Kind: KindPing, Ping: &Ping{}}})
	require.NoError(t, err)
	pong, err := Encode(SignedWireMessage{Message: WireMessage{Kind: KindPong, Pong: &Pong{}}})
	require.NoError(t, err)
	require.NotEqual(t, ping, pong)
}
