package srtnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryInsertGetRemove(t *testing.T) {
	r := newRegistry()

	ctx, ok := r.get(SocketHandle(1))
	require.False(t, ok)
	require.Nil(t, ctx)

	r.insert(SocketHandle(1), "peer-a")

	ctx, ok = r.get(SocketHandle(1))
	require.True(t, ok)
	require.Equal(t, "peer-a", ctx)

	require.Equal(t, 1, r.len())

	removed, ok := r.remove(SocketHandle(1))
	require.True(t, ok)
	require.Equal(t, "peer-a", removed)
	require.Equal(t, 0, r.len())

	_, ok = r.remove(SocketHandle(1))
	require.False(t, ok)
}

func TestRegistrySnapshotAndSockets(t *testing.T) {
	r := newRegistry()
	r.insert(SocketHandle(1), "a")
	r.insert(SocketHandle(2), "b")

	snapshot := r.snapshot()
	require.Len(t, snapshot, 2)

	sockets := r.sockets()
	require.ElementsMatch(t, []SocketHandle{1, 2}, sockets)
}

func TestRegistryClearDrainsAndReturnsEverything(t *testing.T) {
	r := newRegistry()
	r.insert(SocketHandle(1), "a")
	r.insert(SocketHandle(2), "b")

	entries := r.clear()

	require.Len(t, entries, 2)
	require.Equal(t, 0, r.len())
	require.Empty(t, r.snapshot())
}
