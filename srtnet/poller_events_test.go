package srtnet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPollerDeliversReadableEvent(t *testing.T) {
	p := newPoller()
	conn := newFakeConn(42)

	p.add(SocketHandle(42), conn)
	defer p.remove(SocketHandle(42))

	conn.push([]byte("hello"))

	events := p.wait(2 * time.Second)
	require.NotEmpty(t, events)

	found := false
	for _, e := range events {
		if e.handle == SocketHandle(42) && e.kind == eventReadable {
			require.Equal(t, []byte("hello"), e.payload)
			found = true
		}
	}
	require.True(t, found)
}

func TestPollerReportsBrokenOnClose(t *testing.T) {
	p := newPoller()
	conn := newFakeConn(7)

	p.add(SocketHandle(7), conn)

	conn.Close()

	var got *pollEvent
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events := p.wait(200 * time.Millisecond)
		for i := range events {
			if events[i].handle == SocketHandle(7) {
				got = &events[i]
			}
		}
		if got != nil {
			break
		}
	}

	require.NotNil(t, got)
	require.Equal(t, eventBroken, got.kind)
}

func TestPollerRemoveStopsForwarding(t *testing.T) {
	p := newPoller()
	conn := newFakeConn(1)

	p.add(SocketHandle(1), conn)
	p.remove(SocketHandle(1))

	require.Empty(t, p.socketHandles())

	conn.push([]byte("ignored"))

	events := p.wait(300 * time.Millisecond)
	require.Empty(t, events)
}

func TestPollerAddIsIdempotent(t *testing.T) {
	p := newPoller()
	conn := newFakeConn(9)

	p.add(SocketHandle(9), conn)
	p.add(SocketHandle(9), conn)

	require.Len(t, p.socketHandles(), 1)

	p.remove(SocketHandle(9))
}
