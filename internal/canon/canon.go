// Package canon provides the canonical (deterministic) serialization used
// to compute content addresses (internal/address) and to frame wire
// messages. It wraps fxamacker/cbor's "canonical CBOR" mode (RFC 7049
// §3.9): map keys sorted by encoded byte length then lexicographically,
// definite-length containers only, shortest-form integers. Two semantically
// equal Go values always encode to the same bytes.
package canon

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic("canon: building canonical encode mode: " + err.Error())
	}
	encMode = m

	dopts := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}
	dm, err := dopts.DecMode()
	if err != nil {
		panic("canon: building decode mode: " + err.Error())
	}
	decMode = dm
}

// Marshal encodes v into its canonical byte form.
func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes canonical bytes produced by Marshal back into v.
func Unmarshal(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}

// MustMarshal is Marshal but panics on error; reserved for call sites
// where the value's encodability is a programmer invariant (e.g. encoding
// our own header/entry structs, which never contain un-encodable types).
func MustMarshal(v interface{}) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic("canon: " + err.Error())
	}
	return b
}
