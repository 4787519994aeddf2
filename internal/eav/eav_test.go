package eav

import (
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/address"
)

func TestAddAndQueryReturnsEveryValue(t *testing.T) {
	idx := New(memdb.New())
	entity := address.Address{1}
	v1, v2 := address.Address{2}, address.Address{3}

	require.NoError(t, idx.Add(entity, "link:likes", v1))
	require.NoError(t, idx.Add(entity, "link:likes", v2))

	got, err := idx.Query(entity, "link:likes")
	require.NoError(t, err)
	require.ElementsMatch(t, []address.Address{v1, v2}, got)
}

func TestQueryIsScopedToAttribute(t *testing.T) {
	idx := New(memdb.New())
	entity := address.Address{1}
	v1 := address.Address{2}

	require.NoError(t, idx.Add(entity, "link:likes", v1))

	got, err := idx.Query(entity, "link:dislikes")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRemoveDeletesOnlyThatTriple(t *testing.T) {
	idx := New(memdb.New())
	entity := address.Address{1}
	v1, v2 := address.Address{2}, address.Address{3}

	require.NoError(t, idx.Add(entity, "link:likes", v1))
	require.NoError(t, idx.Add(entity, "link:likes", v2))
	require.NoError(t, idx.Remove(entity, "link:likes", v1))

	got, err := idx.Query(entity, "link:likes")
	require.NoError(t, err)
	require.Equal(t, []address.Address{v2}, got)
}
