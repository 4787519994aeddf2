package switchboard

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/lux-nexus/switchboard/internal/address"
)

// dhtLocation derives the 32-bit hash coordinate described in §3
// "DhtLocation": a coordinate reserved for future sharding, not used as a
// membership test by anything in this package.
func dhtLocation(agent address.Address) uint32 {
	sum := blake3.Sum256(agent[:])
	return binary.BigEndian.Uint32(sum[:4])
}
