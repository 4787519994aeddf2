package model

import (
	"time"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/canon"
)

// Provenance attests that agent signed an entry's canonical bytes.
type Provenance struct {
	Agent     address.Address
	Signature []byte
}

// ChainHeader is the metadata pointing at an entry, carrying provenance
// and back-links (§3 "ChainHeader").
type ChainHeader struct {
	EntryType     EntryKind
	EntryAddress  address.Address
	Provenances   []Provenance
	PrevHeader    *address.Address // link_to_previous_header
	PrevOfSameType *address.Address // link_to_previous_of_same_type
	UpdateOrDeleteTarget *address.Address // link_update_or_delete_target
	Timestamp     time.Time
}

// Address returns the header's content address: hash of its canonical
// serialization (§3 invariant: a header's EntryAddress equals the address
// of the entry it names, but the header's own address is independent).
func (h ChainHeader) Address() address.Address {
	return address.FromBytes(canon.MustMarshal(h))
}

// SigningBytes returns the canonical bytes over which provenance
// signatures are computed: the canonical serialization of the entry, not
// of the header. This is what §4.5's provenance check re-verifies.
func SigningBytes(entry Entry) []byte {
	return canon.MustMarshal(entry)
}
