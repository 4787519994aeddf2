// Package model implements the data model of §3: entries, chain headers,
// provenances and aspects. Entry and Aspect are both modeled as tagged
// unions the way the teacher models Block/Vertex kinds in engine/consensus.go
// — a Kind discriminant plus exactly one populated variant field — rather
// than as an interface, since a canonical byte serialization (internal/canon)
// needs a concrete, totally-ordered struct shape to hash.
package model

import (
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/canon"
)

// EntryKind discriminates the variants of Entry.
type EntryKind uint8

const (
	KindApp EntryKind = iota
	KindAgentID
	KindDNA
	KindLinkAdd
	KindLinkRemove
	KindDeletion
	KindChainHeader
	KindCapTokenGrant
	KindCapTokenClaim
)

func (k EntryKind) String() string {
	switch k {
	case KindApp:
		return "App"
	case KindAgentID:
		return "AgentId"
	case KindDNA:
		return "Dna"
	case KindLinkAdd:
		return "LinkAdd"
	case KindLinkRemove:
		return "LinkRemove"
	case KindDeletion:
		return "Deletion"
	case KindChainHeader:
		return "ChainHeader"
	case KindCapTokenGrant:
		return "CapTokenGrant"
	case KindCapTokenClaim:
		return "CapTokenClaim"
	default:
		return "Unknown"
	}
}

// Publishable reports whether entries of this kind are broadcast to the
// network on successful authoring (§4.6 step 5). Private bookkeeping
// entries (capability claims) are not.
func (k EntryKind) Publishable() bool {
	return k != KindCapTokenClaim
}

// App is the payload of a KindApp entry: an application-defined type tag
// plus opaque bytes, validated by the zome's own callback.
type App struct {
	TypeTag string
	Payload []byte
}

// LinkAdd names a typed, tagged edge between two entries.
type LinkAdd struct {
	Base   address.Address
	Target address.Address
	Type   string
	Tag    []byte
}

// LinkRemove retracts a previously added link, identified by the address
// of its LinkAdd entry.
type LinkRemove struct {
	LinkRef address.Address
	Targets []address.Address
}

// Deletion marks a prior entry as removed.
type Deletion struct {
	Target address.Address
}

// CapTokenGrant is an entry a grantor commits to their own chain,
// authorizing callers holding a matching claim to invoke a function.
// See SPEC_FULL.md "Supplemented Features" #2 and internal/capability.
type CapTokenGrant struct {
	Functions []string
	Assignees []address.Address // empty means "any agent may claim"
	Secret    address.Address   // address of a shared secret entry, or empty for unrestricted
}

// CapTokenClaim is an entry the callee commits, referencing a grant by
// address so that future calls can be authorized against it.
type CapTokenClaim struct {
	Grantor address.Address
	Grant   address.Address
}

// Entry is the tagged union described in §3. Exactly one of the variant
// fields matching Kind is populated.
type Entry struct {
	Kind EntryKind

	App           *App             `cbor:",omitempty"`
	AgentID       *address.Address `cbor:",omitempty"`
	DNA           *DNA             `cbor:",omitempty"`
	LinkAdd       *LinkAdd         `cbor:",omitempty"`
	LinkRemove    *LinkRemove      `cbor:",omitempty"`
	Deletion      *Deletion        `cbor:",omitempty"`
	Header        *ChainHeader     `cbor:",omitempty"`
	CapTokenGrant *CapTokenGrant   `cbor:",omitempty"`
	CapTokenClaim *CapTokenClaim   `cbor:",omitempty"`
}

// DNA is the application package entry: code hash plus entry-type schema
// and declared bridges, committed as the second entry on every chain.
type DNA struct {
	CodeHash        address.Address
	SchemaHash      address.Address
	RequiredBridges []string
	UUID            string
}

// NewApp constructs a KindApp entry.
func NewApp(typeTag string, payload []byte) Entry {
	return Entry{Kind: KindApp, App: &App{TypeTag: typeTag, Payload: payload}}
}

// NewAgentID constructs a KindAgentID entry.
func NewAgentID(agent address.Address) Entry {
	return Entry{Kind: KindAgentID, AgentID: &agent}
}

// NewDNA constructs a KindDNA entry.
func NewDNA(d DNA) Entry {
	return Entry{Kind: KindDNA, DNA: &d}
}

// NewLinkAdd constructs a KindLinkAdd entry.
func NewLinkAdd(l LinkAdd) Entry {
	return Entry{Kind: KindLinkAdd, LinkAdd: &l}
}

// NewLinkRemove constructs a KindLinkRemove entry.
func NewLinkRemove(l LinkRemove) Entry {
	return Entry{Kind: KindLinkRemove, LinkRemove: &l}
}

// NewDeletion constructs a KindDeletion entry.
func NewDeletion(target address.Address) Entry {
	return Entry{Kind: KindDeletion, Deletion: &Deletion{Target: target}}
}

// Address returns the entry's content address: the hash of its canonical
// serialization (§3 "Entry").
func (e Entry) Address() address.Address {
	return address.FromBytes(canon.MustMarshal(e))
}
