// Package aspectmap implements the per-space AspectMap (§4.2, C4):
// entry_address -> set of aspect_address, with deterministic diff/merge.
package aspectmap

import (
	"sort"
	"sync"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/xset"
)

// Map is entry_address -> set<aspect_address>. The zero value is ready to
// use. Map is safe for concurrent use; callers needing a point-in-time
// snapshot should use Clone.
type Map struct {
	mu  sync.RWMutex
	all map[address.Address]xset.Set[address.Address]
}

// New returns an empty Map.
func New() *Map {
	return &Map{all: make(map[address.Address]xset.Set[address.Address])}
}

// Add records that aspectAddr exists for entryAddr.
func (m *Map) Add(entryAddr, aspectAddr address.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.all == nil {
		m.all = make(map[address.Address]xset.Set[address.Address])
	}
	s, ok := m.all[entryAddr]
	if !ok {
		s = xset.Of[address.Address]()
		m.all[entryAddr] = s
	}
	s.Add(aspectAddr)
}

// Has reports whether aspectAddr is recorded under entryAddr.
func (m *Map) Has(entryAddr, aspectAddr address.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.all[entryAddr]
	return ok && s.Contains(aspectAddr)
}

// Entries returns the entry addresses with at least one aspect, sorted by
// byte order for reproducibility.
func (m *Map) Entries() []address.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]address.Address, 0, len(m.all))
	for e := range m.all {
		out = append(out, e)
	}
	sortAddresses(out)
	return out
}

// Aspects returns the aspect addresses filed under entryAddr, sorted by
// byte order.
func (m *Map) Aspects(entryAddr address.Address) []address.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.all[entryAddr]
	if !ok {
		return nil
	}
	out := s.List()
	sortAddresses(out)
	return out
}

// Clone returns a deep copy, safe to mutate independently of m.
func (m *Map) Clone() *Map {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := New()
	for e, s := range m.all {
		out.all[e] = s.Clone()
	}
	return out
}

// Diff returns the aspects present in m but not in other, grouped by
// entry, dropping entries left with an empty set (§4.2).
func (m *Map) Diff(other *Map) *Map {
	m.mu.RLock()
	defer m.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	out := New()
	for e, s := range m.all {
		otherSet, ok := other.all[e]
		var remainder xset.Set[address.Address]
		if ok {
			remainder = s.Difference(otherSet)
		} else {
			remainder = s.Clone()
		}
		if remainder.Len() > 0 {
			out.all[e] = remainder
		}
	}
	return out
}

// Merge returns the union of m and other, by entry (§4.2). It does not
// mutate either input.
func (m *Map) Merge(other *Map) *Map {
	m.mu.RLock()
	defer m.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	out := New()
	for e, s := range m.all {
		out.all[e] = s.Clone()
	}
	for e, s := range other.all {
		if existing, ok := out.all[e]; ok {
			out.all[e] = existing.Union(s)
		} else {
			out.all[e] = s.Clone()
		}
	}
	return out
}

// IsEmpty reports whether the map holds no aspects at all.
func (m *Map) IsEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.all) == 0
}

// Count returns the total number of aspect addresses recorded across all
// entries, used by the instance state-dump report.
func (m *Map) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.all {
		n += s.Len()
	}
	return n
}

func sortAddresses(addrs []address.Address) {
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
}
