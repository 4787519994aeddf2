package cas

import (
	"context"
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/lux-nexus/switchboard/internal/address"
)

func TestPutGetRoundTrips(t *testing.T) {
	s := New(memdb.New())
	ctx := context.Background()

	addr, err := s.Put(ctx, []byte("hello"))
	require.NoError(t, err)

	got, ok, err := s.Get(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), got)
}

func TestPutIsIdempotent(t *testing.T) {
	s := New(memdb.New())
	ctx := context.Background()

	a1, err := s.Put(ctx, []byte("same bytes"))
	require.NoError(t, err)
	a2, err := s.Put(ctx, []byte("same bytes"))
	require.NoError(t, err)
	require.Equal(t, a1, a2)
}

func TestGetMissingIsNotFoundNotError(t *testing.T) {
	s := New(memdb.New())
	ctx := context.Background()

	missing := address.FromBytes([]byte("never inserted"))
	_, ok, err := s.Get(ctx, missing)
	require.NoError(t, err)
	require.False(t, ok)

	has, err := s.Has(ctx, missing)
	require.NoError(t, err)
	require.False(t, has)
}
