// Package wire implements the switchboard wire protocol of §6: signed
// envelopes carrying a closed set of message variants between conductor
// instances and the space switchboard relay. Encoding is canonical CBOR
// (internal/canon) so a message's bytes are the same regardless of which
// peer built it, which matters for the few places a message's own address
// is used (none currently, but it keeps the wire format consistent with
// every other canonically-addressed structure in this module).
package wire

import (
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/canon"
	"github.com/lux-nexus/switchboard/internal/model"
)

// MessageKind discriminates WireMessage's variants (§6).
type MessageKind uint8

const (
	KindPing MessageKind = iota
	KindPong
	KindJoinSpace
	KindLeaveSpace
	KindSendDirectMessage
	KindPublishEntry
	KindHandleSendDirectMessage
	KindHandleSendDirectMessageResult
	KindHandleStoreEntryAspect
	KindHandleGetAuthoringEntryList
	KindHandleGetAuthoringEntryListResult
	KindHandleGetGossipingEntryList
	KindHandleGetGossipingEntryListResult
	KindHandleFetchEntry
	KindHandleFetchEntryResult
	KindErr
)

func (k MessageKind) String() string {
	names := map[MessageKind]string{
		KindPing:                               "Ping",
		KindPong:                               "Pong",
		KindJoinSpace:                           "JoinSpace",
		KindLeaveSpace:                          "LeaveSpace",
		KindSendDirectMessage:                  "SendDirectMessage",
		KindPublishEntry:                       "PublishEntry",
		KindHandleSendDirectMessage:            "HandleSendDirectMessage",
		KindHandleSendDirectMessageResult:      "HandleSendDirectMessageResult",
		KindHandleStoreEntryAspect:             "HandleStoreEntryAspect",
		KindHandleGetAuthoringEntryList:        "HandleGetAuthoringEntryList",
		KindHandleGetAuthoringEntryListResult:  "HandleGetAuthoringEntryListResult",
		KindHandleGetGossipingEntryList:        "HandleGetGossipingEntryList",
		KindHandleGetGossipingEntryListResult:  "HandleGetGossipingEntryListResult",
		KindHandleFetchEntry:                   "HandleFetchEntry",
		KindHandleFetchEntryResult:             "HandleFetchEntryResult",
		KindErr:                                "Err",
	}
	if n, ok := names[k]; ok {
		return n
	}
	return "Unknown"
}

// FetchReasonKind discriminates FetchReason. This replaces the original
// system's overloaded request_id correlation field (§9 Open Question,
// Redesign Flag applied): a fetch is either for this instance's own
// authoring gap-fill, or forwarding an entry on to a third agent who
// asked for it, and the reason now says so explicitly instead of the
// requester having to remember what an opaque id meant.
type FetchReasonKind uint8

const (
	FetchReasonAuthoring FetchReasonKind = iota
	FetchReasonForwardTo
)

// FetchReason is why HandleFetchEntry was issued.
type FetchReason struct {
	Kind      FetchReasonKind
	ForwardTo *address.Address // populated iff Kind == FetchReasonForwardTo
}

// AuthoringFetch builds a FetchReason for an instance's own gap-fill.
func AuthoringFetch() FetchReason { return FetchReason{Kind: FetchReasonAuthoring} }

// ForwardFetch builds a FetchReason for relaying the fetched entry on to
// agent once retrieved.
func ForwardFetch(agent address.Address) FetchReason {
	return FetchReason{Kind: FetchReasonForwardTo, ForwardTo: &agent}
}

// ErrKind enumerates the wire-level error conditions a switchboard can
// report back to a sender (§6, §7).
type ErrKind uint8

const (
	ErrSpaceMismatch ErrKind = iota
	ErrSignerMismatch
	ErrVerifyFailed
	ErrMessageWhileInLimbo
	ErrInternal
)

// Ping/Pong carry no payload beyond their Kind.
type Ping struct{}
type Pong struct{}

// JoinSpace is the first message a connection must send; everything else
// is rejected while the connection is in Limbo (§4.9).
type JoinSpace struct {
	SpaceAddress address.Address
	Agent        address.Address
}

// LeaveSpace ends this connection's membership in a space.
type LeaveSpace struct {
	SpaceAddress address.Address
}

// SendDirectMessage relays an opaque payload from one agent to another
// within a space. FromAgent must equal the connection's joined agent
// (§4.9 "require from == agent"); ToAgent names the recipient.
type SendDirectMessage struct {
	SpaceAddress address.Address
	FromAgent    address.Address
	ToAgent      address.Address
	Payload      []byte
}

// HandleSendDirectMessage is the switchboard forwarding a
// SendDirectMessage on to its recipient (§4.9, §6).
type HandleSendDirectMessage struct {
	SpaceAddress address.Address
	FromAgent    address.Address
	ToAgent      address.Address
	Payload      []byte
}

// HandleSendDirectMessageResult is the reply path, routed the same way in
// reverse (§4.9 "same routing in reverse").
type HandleSendDirectMessageResult struct {
	SpaceAddress address.Address
	FromAgent    address.Address
	ToAgent      address.Address
	Payload      []byte
}

// PublishEntry announces a newly authored entry's aspects to the space
// (§6 "entry: {entry_address, aspect_list}"). Provider is filled in by
// the router from the connection's joined agent, not trusted from the
// wire bytes themselves. A zero-length AspectList is valid and causes no
// broadcast (§8 boundary behavior).
type PublishEntry struct {
	SpaceAddress address.Address
	Provider     address.Address
	EntryAddress address.Address
	AspectList   []model.Aspect
}

// HandleStoreEntryAspect is the switchboard telling a holding peer to
// store an aspect it has been assigned (post gossip/publish fan-out).
type HandleStoreEntryAspect struct {
	SpaceAddress address.Address
	Provider     address.Address
	EntryAddress address.Address
	Aspect       model.Aspect
}

// HandleGetAuthoringEntryList asks an agent for the list of entries it
// has authored (used to detect holding gaps after reconnect, §4.4).
type HandleGetAuthoringEntryList struct {
	SpaceAddress address.Address
}

// HandleGetAuthoringEntryListResult answers HandleGetAuthoringEntryList.
type HandleGetAuthoringEntryListResult struct {
	SpaceAddress address.Address
	Entries      map[address.Address][]address.Address // entry -> held aspects
}

// HandleGetGossipingEntryList asks a peer for the AspectMap it currently
// holds, for gossip diffing (§4.4).
type HandleGetGossipingEntryList struct {
	SpaceAddress address.Address
}

// HandleGetGossipingEntryListResult answers HandleGetGossipingEntryList.
type HandleGetGossipingEntryListResult struct {
	SpaceAddress address.Address
	Entries      map[address.Address][]address.Address
}

// HandleFetchEntry requests EntryAddress's aspects from ToAgent, tagged
// with why (§9 redesign: explicit FetchReason).
type HandleFetchEntry struct {
	SpaceAddress address.Address
	EntryAddress address.Address
	ToAgent      address.Address
	Reason       FetchReason
}

// HandleFetchEntryResult answers HandleFetchEntry.
type HandleFetchEntryResult struct {
	SpaceAddress address.Address
	EntryAddress address.Address
	Aspect       model.Aspect
	Reason       FetchReason
}

// Err reports a wire-level failure back to the sender.
type Err struct {
	Kind    ErrKind
	Message string
}

// WireMessage is the tagged union of every message the switchboard
// protocol exchanges (§6). Exactly one variant field matching Kind is
// populated.
type WireMessage struct {
	Kind MessageKind

	Ping                              *Ping                              `cbor:",omitempty"`
	Pong                              *Pong                              `cbor:",omitempty"`
	JoinSpace                         *JoinSpace                         `cbor:",omitempty"`
	LeaveSpace                        *LeaveSpace                        `cbor:",omitempty"`
	SendDirectMessage                 *SendDirectMessage                 `cbor:",omitempty"`
	PublishEntry                      *PublishEntry                      `cbor:",omitempty"`
	HandleSendDirectMessage           *HandleSendDirectMessage           `cbor:",omitempty"`
	HandleSendDirectMessageResult     *HandleSendDirectMessageResult     `cbor:",omitempty"`
	HandleStoreEntryAspect            *HandleStoreEntryAspect            `cbor:",omitempty"`
	HandleGetAuthoringEntryList       *HandleGetAuthoringEntryList       `cbor:",omitempty"`
	HandleGetAuthoringEntryListResult *HandleGetAuthoringEntryListResult `cbor:",omitempty"`
	HandleGetGossipingEntryList       *HandleGetGossipingEntryList       `cbor:",omitempty"`
	HandleGetGossipingEntryListResult *HandleGetGossipingEntryListResult `cbor:",omitempty"`
	HandleFetchEntry                  *HandleFetchEntry                  `cbor:",omitempty"`
	HandleFetchEntryResult            *HandleFetchEntryResult            `cbor:",omitempty"`
	Err                               *Err                               `cbor:",omitempty"`
}

// Provenance carries the signer's agent address and signature over a
// SignedWireMessage's inner WireMessage bytes (§6: "no separate public
// key field" — verification recovers the key from Agent itself, see
// internal/signer.Verify).
type Provenance struct {
	Agent     address.Address
	Signature []byte
}

// SignedWireMessage is what actually crosses the wire: a WireMessage plus
// the provenance of whoever sent it. Every message is verified against
// Provenance.Agent; a JoinSpace is then accepted only if its embedded
// Agent field equals that signer (§4.9).
type SignedWireMessage struct {
	Message    WireMessage
	Provenance Provenance
}

// SigningBytes returns the canonical bytes a SignedWireMessage's
// Provenance.Signature must cover.
func SigningBytes(msg WireMessage) []byte {
	return canon.MustMarshal(msg)
}

// Encode canonically serializes sm for wire transmission.
func Encode(sm SignedWireMessage) ([]byte, error) {
	return canon.Marshal(sm)
}

// Decode parses b into a SignedWireMessage.
func Decode(b []byte) (SignedWireMessage, error) {
	var sm SignedWireMessage
	if err := canon.Unmarshal(b, &sm); err != nil {
		return SignedWireMessage{}, err
	}
	return sm, nil
}
