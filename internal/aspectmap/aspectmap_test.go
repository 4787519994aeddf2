package aspectmap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/address"
)

func addr(b byte) address.Address {
	var a address.Address
	a[0] = b
	return a
}

func TestDiffDropsEmptySets(t *testing.T) {
	a := New()
	a.Add(addr(1), addr(10))
	b := New()
	b.Add(addr(1), addr(10))

	diff := a.Diff(b)
	require.True(t, diff.IsEmpty())
}

func TestDiffPreservesUnseenAspects(t *testing.T) {
	a := New()
	a.Add(addr(1), addr(10))
	a.Add(addr(1), addr(11))
	a.Add(addr(2), addr(20))

	b := New()
	b.Add(addr(1), addr(10))

	diff := a.Diff(b)
	require.Equal(t, []address.Address{addr(11)}, diff.Aspects(addr(1)))
	require.Equal(t, []address.Address{addr(20)}, diff.Aspects(addr(2)))
}

func TestMergeUnionsByEntry(t *testing.T) {
	a := New()
	a.Add(addr(1), addr(10))
	b := New()
	b.Add(addr(1), addr(11))
	b.Add(addr(2), addr(20))

	merged := a.Merge(b)
	require.ElementsMatch(t, []address.Address{addr(10), addr(11)}, merged.Aspects(addr(1)))
	require.ElementsMatch(t, []address.Address{addr(20)}, merged.Aspects(addr(2)))
}

// TestDiffMergeLaw checks §8 invariant 7: A.diff(B).merge(A ∩ B) == A,
// for A ∩ B approximated here via an explicit intersection map since Map
// does not expose set intersection directly (AspectMap's public contract
// is diff/merge only, per §4.2).
func TestDiffMergeLaw(t *testing.T) {
	a := New()
	a.Add(addr(1), addr(10))
	a.Add(addr(1), addr(11))
	a.Add(addr(2), addr(20))

	b := New()
	b.Add(addr(1), addr(10))
	b.Add(addr(3), addr(30))

	intersection := New()
	for _, e := range a.Entries() {
		for _, asp := range a.Aspects(e) {
			if b.Has(e, asp) {
				intersection.Add(e, asp)
			}
		}
	}

	reconstructed := a.Diff(b).Merge(intersection)
	require.ElementsMatch(t, a.Entries(), reconstructed.Entries())
	for _, e := range a.Entries() {
		require.ElementsMatch(t, a.Aspects(e), reconstructed.Aspects(e))
	}
}
