// Package chain implements the per-agent local chain (§4.1, C3): an
// append-only sequence of (header, entry) pairs with back-linked headers.
// The chain is single-writer by construction — Append takes the instance's
// state lock's caller on trust, per §5 ("the core is single-writer, so
// this is enforced structurally, not with a lock visible to callers") —
// so Chain itself does not lock; internal/instance serializes all calls
// onto its action loop.
package chain

import (
	"fmt"
	"time"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/model"
)

// Pair is one (header, entry) link in the chain.
type Pair struct {
	Header model.ChainHeader
	Entry  model.Entry
}

// Chain is the append-only, totally ordered sequence of entries
// authored by one agent.
type Chain struct {
	pairs      []Pair
	byEntry    map[address.Address]int // entry address -> index in pairs
	byHeader   map[address.Address]int // header address -> index in pairs
	lastOfType map[model.EntryKind]address.Address
}

// New returns an empty chain.
func New() *Chain {
	return &Chain{
		byEntry:    make(map[address.Address]int),
		byHeader:   make(map[address.Address]int),
		lastOfType: make(map[model.EntryKind]address.Address),
	}
}

// TopHeader returns the most recently appended header, if any.
func (c *Chain) TopHeader() (model.ChainHeader, bool) {
	if len(c.pairs) == 0 {
		return model.ChainHeader{}, false
	}
	return c.pairs[len(c.pairs)-1].Header, true
}

// Len returns the number of entries on the chain.
func (c *Chain) Len() int {
	return len(c.pairs)
}

// Append computes all back-links from the current chain state, appends
// (entry, header) atomically, and returns the resulting header. provenances
// must already be populated by the caller (the authoring workflow, §4.6,
// which signs before calling Append).
//
// Invariant enforced here: entry.Address() == header computed EntryAddress
// (the caller supplies the entry; Append fills in EntryAddress itself so
// this can never drift) and, once appended, a header is never re-ordered
// or re-parented (Append only ever extends the slice).
func (c *Chain) Append(entry model.Entry, provenances []model.Provenance, updateOrDeleteTarget *address.Address) model.ChainHeader {
	entryAddr := entry.Address()

	header := model.ChainHeader{
		EntryType:            entry.Kind,
		EntryAddress:         entryAddr,
		Provenances:          provenances,
		UpdateOrDeleteTarget: updateOrDeleteTarget,
		Timestamp:            time.Now().UTC(),
	}
	if top, ok := c.TopHeader(); ok {
		topAddr := top.Address()
		header.PrevHeader = &topAddr
	}
	if prev, ok := c.lastOfType[entry.Kind]; ok {
		p := prev
		header.PrevOfSameType = &p
	}

	idx := len(c.pairs)
	c.pairs = append(c.pairs, Pair{Header: header, Entry: entry})
	c.byEntry[entryAddr] = idx
	headerAddr := header.Address()
	c.byHeader[headerAddr] = idx
	c.lastOfType[entry.Kind] = headerAddr

	return header
}

// PreflightHeader constructs, without persisting, the header an entry
// would receive if appended right now (§4.1 "pre-flight headers"). Used
// by the validation pipeline (internal/validation) to build a validation
// package for an entry that is about to be committed but is not yet in
// the chain.
func (c *Chain) PreflightHeader(entry model.Entry, provenances []model.Provenance, updateOrDeleteTarget *address.Address) model.ChainHeader {
	header := model.ChainHeader{
		EntryType:            entry.Kind,
		EntryAddress:         entry.Address(),
		Provenances:          provenances,
		UpdateOrDeleteTarget: updateOrDeleteTarget,
		Timestamp:            time.Now().UTC(),
	}
	if top, ok := c.TopHeader(); ok {
		topAddr := top.Address()
		header.PrevHeader = &topAddr
	}
	if prev, ok := c.lastOfType[entry.Kind]; ok {
		p := prev
		header.PrevOfSameType = &p
	}
	return header
}

// GetEntry returns the entry stored at addr, if any.
func (c *Chain) GetEntry(addr address.Address) (model.Entry, bool) {
	idx, ok := c.byEntry[addr]
	if !ok {
		return model.Entry{}, false
	}
	return c.pairs[idx].Entry, true
}

// GetHeaderForEntry returns the header committed for the entry at addr.
func (c *Chain) GetHeaderForEntry(addr address.Address) (model.ChainHeader, bool) {
	idx, ok := c.byEntry[addr]
	if !ok {
		return model.ChainHeader{}, false
	}
	return c.pairs[idx].Header, true
}

// GetHeader returns the header stored at addr, if any.
func (c *Chain) GetHeader(addr address.Address) (model.ChainHeader, bool) {
	idx, ok := c.byHeader[addr]
	if !ok {
		return model.ChainHeader{}, false
	}
	return c.pairs[idx].Header, true
}

// IterFromNewest calls fn for every pair starting at the top header and
// walking back to genesis, stopping early if fn returns false. If from is
// non-nil, iteration starts at that header instead of the top.
func (c *Chain) IterFromNewest(from *address.Address, fn func(Pair) bool) error {
	start := len(c.pairs) - 1
	if from != nil {
		idx, ok := c.byHeader[*from]
		if !ok {
			return fmt.Errorf("chain: no such header %s", from)
		}
		start = idx
	}
	for i := start; i >= 0; i-- {
		if !fn(c.pairs[i]) {
			return nil
		}
	}
	return nil
}

// PublishableEntries returns every entry on the chain whose kind is
// publishable, oldest first — used to build a ChainEntries validation
// package (§4.5).
func (c *Chain) PublishableEntries() []model.Entry {
	out := make([]model.Entry, 0, len(c.pairs))
	for _, p := range c.pairs {
		if p.Header.EntryType.Publishable() {
			out = append(out, p.Entry)
		}
	}
	return out
}

// AllHeaders returns every header on the chain, oldest first.
func (c *Chain) AllHeaders() []model.ChainHeader {
	out := make([]model.ChainHeader, 0, len(c.pairs))
	for _, p := range c.pairs {
		out = append(out, p.Header)
	}
	return out
}
