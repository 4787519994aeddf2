// Package cas implements the content-addressable store described as C2 in
// §2 ("Content store (external)"): address-by-hash blob storage with
// idempotent insert and fetch-by-hash. The spec treats the storage engine
// itself as an external collaborator; this package is the thin binding
// between that collaborator's key/value contract
// (github.com/luxfi/database, as used by the teacher's chains/atomic and
// block packages for exactly this kind of address-keyed storage) and our
// Address type.
package cas

import (
	"context"
	"fmt"

	"github.com/luxfi/database"

	"github.com/lux-nexus/switchboard/internal/address"
)

// Store is a content-addressable blob store.
type Store struct {
	db database.Database
}

// New wraps db as a content-addressable Store.
func New(db database.Database) *Store {
	return &Store{db: db}
}

// Put inserts b, keyed by its own hash. Re-inserting identical bytes is a
// no-op (idempotent insert, §2).
func (s *Store) Put(ctx context.Context, b []byte) (address.Address, error) {
	addr := address.FromBytes(b)
	has, err := s.db.Has(addr[:])
	if err != nil {
		return addr, fmt.Errorf("cas: checking existing entry: %w", err)
	}
	if has {
		return addr, nil
	}
	if err := s.db.Put(addr[:], b); err != nil {
		return addr, fmt.Errorf("cas: put: %w", err)
	}
	return addr, nil
}

// Get fetches the bytes stored under addr. ok is false if nothing is
// stored there.
func (s *Store) Get(ctx context.Context, addr address.Address) (b []byte, ok bool, err error) {
	has, err := s.db.Has(addr[:])
	if err != nil {
		return nil, false, fmt.Errorf("cas: has: %w", err)
	}
	if !has {
		return nil, false, nil
	}
	b, err = s.db.Get(addr[:])
	if err != nil {
		return nil, false, fmt.Errorf("cas: get: %w", err)
	}
	return b, true, nil
}

// Has reports whether addr is stored, without fetching its bytes.
func (s *Store) Has(ctx context.Context, addr address.Address) (bool, error) {
	return s.db.Has(addr[:])
}
