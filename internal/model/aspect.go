package model

import (
	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/canon"
)

// AspectKind discriminates the variants of Aspect (§3 "Aspect").
type AspectKind uint8

const (
	AspectContent AspectKind = iota
	AspectHeader
	AspectUpdate
	AspectLinkAdd
	AspectLinkRemove
	AspectDeletion
)

func (k AspectKind) String() string {
	switch k {
	case AspectContent:
		return "Content"
	case AspectHeader:
		return "Header"
	case AspectUpdate:
		return "Update"
	case AspectLinkAdd:
		return "LinkAdd"
	case AspectLinkRemove:
		return "LinkRemove"
	case AspectDeletion:
		return "Deletion"
	default:
		return "Unknown"
	}
}

// Aspect is a gossipable unit of data about some base entry (§3). Exactly
// one of the variant fields matching Kind is populated. The base entry
// address an aspect is filed under (the AspectMap key) is computed by the
// caller per §4.6's "Publish reducer" rules, not stored on the aspect
// itself — the same aspect bytes are meaningful only in the context of
// the entry address they were filed under.
type Aspect struct {
	Kind AspectKind

	Content *ContentAspect `cbor:",omitempty"`
	Header  *HeaderAspect  `cbor:",omitempty"`
	Update  *UpdateAspect  `cbor:",omitempty"`
	Link    *LinkAspect    `cbor:",omitempty"`
}

// ContentAspect pairs an entry with its header. Immutable once created.
type ContentAspect struct {
	Entry  Entry
	Header ChainHeader
}

// HeaderAspect carries just a header, used to propagate header
// information for entries that are not themselves publishable (§4.6
// step 6, "PublishHeader").
type HeaderAspect struct {
	Header ChainHeader
}

// UpdateAspect refers to an older entry being superseded.
type UpdateAspect struct {
	NewEntry  Entry
	NewHeader ChainHeader
}

// LinkAspect carries a LinkAdd or LinkRemove entry plus its header; Kind
// distinguishes which.
type LinkAspect struct {
	LinkEntry Entry
	Header    ChainHeader
}

// NewContentAspect constructs a Content aspect.
func NewContentAspect(entry Entry, header ChainHeader) Aspect {
	return Aspect{Kind: AspectContent, Content: &ContentAspect{Entry: entry, Header: header}}
}

// NewHeaderAspect constructs a Header aspect.
func NewHeaderAspect(header ChainHeader) Aspect {
	return Aspect{Kind: AspectHeader, Header: &HeaderAspect{Header: header}}
}

// NewUpdateAspect constructs an Update aspect.
func NewUpdateAspect(newEntry Entry, newHeader ChainHeader) Aspect {
	return Aspect{Kind: AspectUpdate, Update: &UpdateAspect{NewEntry: newEntry, NewHeader: newHeader}}
}

// NewLinkAddAspect constructs a LinkAdd aspect.
func NewLinkAddAspect(linkEntry Entry, header ChainHeader) Aspect {
	return Aspect{Kind: AspectLinkAdd, Link: &LinkAspect{LinkEntry: linkEntry, Header: header}}
}

// NewLinkRemoveAspect constructs a LinkRemove aspect.
func NewLinkRemoveAspect(linkEntry Entry, header ChainHeader) Aspect {
	return Aspect{Kind: AspectLinkRemove, Link: &LinkAspect{LinkEntry: linkEntry, Header: header}}
}

// NewDeletionAspect constructs a Deletion aspect.
func NewDeletionAspect(header ChainHeader) Aspect {
	return Aspect{Kind: AspectDeletion, Header: &HeaderAspect{Header: header}}
}

// Address returns the aspect's content address: the hash of its canonical
// serialization (§3 "An aspect's address is the hash of its canonical form").
func (a Aspect) Address() address.Address {
	return address.FromBytes(canon.MustMarshal(a))
}
