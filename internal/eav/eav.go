// Package eav implements the entry-attribute-value index described as
// part of C2 in §2: a secondary index over entries, keyed by an
// attribute (link type or header relationship), used to answer
// "what points at this entry" queries without scanning the whole CAS.
// Like internal/cas, the actual storage engine is an external
// collaborator (github.com/luxfi/database); this package only defines
// the entity/attribute/value key scheme over it.
package eav

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/luxfi/database"

	"github.com/lux-nexus/switchboard/internal/address"
)

// Index is an entity-attribute-value store: entity address + attribute
// name -> set of value addresses (e.g. a LinkAdd's base entity, "link:<type>"
// attribute, target value).
type Index struct {
	db database.Database
}

// New wraps db as an EAV Index.
func New(db database.Database) *Index {
	return &Index{db: db}
}

func key(entity address.Address, attribute string, value address.Address) []byte {
	var buf bytes.Buffer
	buf.Write(entity[:])
	buf.WriteByte(0)
	buf.WriteString(attribute)
	buf.WriteByte(0)
	buf.Write(value[:])
	return buf.Bytes()
}

func prefix(entity address.Address, attribute string) []byte {
	var buf bytes.Buffer
	buf.Write(entity[:])
	buf.WriteByte(0)
	buf.WriteString(attribute)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Add records that (entity, attribute) -> value holds.
func (i *Index) Add(entity address.Address, attribute string, value address.Address) error {
	if err := i.db.Put(key(entity, attribute, value), []byte{1}); err != nil {
		return fmt.Errorf("eav: add: %w", err)
	}
	return nil
}

// Remove deletes a previously added (entity, attribute, value) triple.
func (i *Index) Remove(entity address.Address, attribute string, value address.Address) error {
	if err := i.db.Delete(key(entity, attribute, value)); err != nil {
		return fmt.Errorf("eav: remove: %w", err)
	}
	return nil
}

// Query returns every value address recorded under (entity, attribute),
// sorted by byte order for deterministic output.
func (i *Index) Query(entity address.Address, attribute string) ([]address.Address, error) {
	it := i.db.NewIteratorWithPrefix(prefix(entity, attribute))
	defer it.Release()

	var out []address.Address
	p := prefix(entity, attribute)
	for it.Next() {
		k := it.Key()
		if len(k) < len(p)+address.Size {
			continue
		}
		var v address.Address
		copy(v[:], k[len(k)-address.Size:])
		out = append(out, v)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("eav: query: %w", err)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Less(out[b]) })
	return out, nil
}
