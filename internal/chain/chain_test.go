package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/model"
)

func TestAppendLinksToTop(t *testing.T) {
	c := New()

	h1 := c.Append(model.NewApp("note", []byte("one")), nil, nil)
	require.Nil(t, h1.PrevHeader)

	h2 := c.Append(model.NewApp("note", []byte("two")), nil, nil)
	require.NotNil(t, h2.PrevHeader)
	require.Equal(t, h1.Address(), *h2.PrevHeader)

	h3 := c.Append(model.NewApp("note", []byte("three")), nil, nil)
	require.NotNil(t, h3.PrevHeader)
	require.Equal(t, h2.Address(), *h3.PrevHeader)
}

func TestEntryAddressInvariant(t *testing.T) {
	c := New()
	entry := model.NewApp("note", []byte("hello"))
	h := c.Append(entry, nil, nil)
	require.Equal(t, entry.Address(), h.EntryAddress)
}

func TestGetEntryRoundTrip(t *testing.T) {
	c := New()
	entry := model.NewApp("note", []byte("hello"))
	c.Append(entry, nil, nil)

	got, ok := c.GetEntry(entry.Address())
	require.True(t, ok)
	require.Equal(t, entry, got)
}

func TestPrevOfSameType(t *testing.T) {
	c := New()
	h1 := c.Append(model.NewApp("note", []byte("a")), nil, nil)
	c.Append(model.NewAgentID(address.Address{1}), nil, nil)
	h3 := c.Append(model.NewApp("note", []byte("b")), nil, nil)

	require.NotNil(t, h3.PrevOfSameType)
	require.Equal(t, h1.Address(), *h3.PrevOfSameType)
}

func TestPreflightHeaderDoesNotPersist(t *testing.T) {
	c := New()
	c.Append(model.NewApp("note", []byte("a")), nil, nil)

	pre := c.PreflightHeader(model.NewApp("note", []byte("b")), nil, nil)
	require.Equal(t, 1, c.Len())
	_, ok := c.GetHeader(pre.Address())
	require.False(t, ok)
}

func TestIterFromNewestOrder(t *testing.T) {
	c := New()
	c.Append(model.NewApp("note", []byte("a")), nil, nil)
	c.Append(model.NewApp("note", []byte("b")), nil, nil)
	c.Append(model.NewApp("note", []byte("c")), nil, nil)

	var seen [][]byte
	err := c.IterFromNewest(nil, func(p Pair) bool {
		seen = append(seen, p.Entry.App.Payload)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("c"), []byte("b"), []byte("a")}, seen)
}
