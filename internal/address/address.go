// Package address implements the content-derived addressing scheme used
// throughout the platform: entries, headers and aspects are all named by
// the hash of their canonical serialization.
package address

import (
	"encoding/hex"

	"github.com/luxfi/ids"
	"github.com/zeebo/blake3"
)

// Size is the length in bytes of an Address.
const Size = 32

// Address is a content-derived hash. Two addresses are equal iff their
// bytes are equal; Address carries no other semantics. It is defined
// directly on top of the teacher's own fixed-size identifier type,
// github.com/luxfi/ids.ID, rather than a hand-rolled array (see
// DESIGN.md) — ids.ID is itself exactly "[32]byte, comparable, usable as
// a map key", which is all §3 asks of an Address.
type Address ids.ID

// Empty is the zero address, used as a sentinel for "no predecessor".
var Empty = Address(ids.Empty)

// FromBytes hashes b with BLAKE3 and returns the resulting Address. The
// hash function stays BLAKE3 regardless of the identifier type it fills
// in — ids.ID carries no hashing opinion of its own.
func FromBytes(b []byte) Address {
	return Address(blake3.Sum256(b))
}

// String renders the address as lowercase hex. ids.ID's own String()
// uses base58/CB58 (the teacher's chain-ID convention); the wire
// protocol here fixes addresses to hex instead (§4.10's
// "[agent_address_hex, signature_hex]" provenance tuples), so String
// and Parse stay local rather than delegating to ids.ID's encoding.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsEmpty reports whether a is the zero address.
func (a Address) IsEmpty() bool {
	return a == Empty
}

// Less orders addresses by byte value, used to make AspectMap iteration
// and diff output deterministic for reproducible tests.
func (a Address) Less(other Address) bool {
	return ids.ID(a).Compare(ids.ID(other)) < 0
}

// Parse decodes a hex string produced by String back into an Address.
func Parse(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, err
	}
	if len(b) != Size {
		return a, errInvalidLength
	}
	copy(a[:], b)
	return a, nil
}
