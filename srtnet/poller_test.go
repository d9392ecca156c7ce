package srtnet

import (
	"io"
	"net"
	"os"
	"sync"
	"time"

	srt "github.com/datarhei/gosrt"
)

// fakeConn is a minimal srt.Conn double for exercising the poller without a
// real transport: Read blocks on an internal channel and, unlike gosrt's
// socket, honors read deadlines by returning os.ErrDeadlineExceeded.
type fakeConn struct {
	id   uint32
	data chan []byte

	mu           sync.Mutex
	readDeadline time.Time
	closed       chan struct{}
	closeOnce    sync.Once
}

func newFakeConn(id uint32) *fakeConn {
	return &fakeConn{id: id, data: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *fakeConn) push(b []byte) { c.data <- b }

func (c *fakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	dl := c.readDeadline
	c.mu.Unlock()

	var timeoutCh <-chan time.Time
	if !dl.IsZero() {
		remaining := time.Until(dl)
		if remaining <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case b := <-c.data:
		return copy(p, b), nil
	case <-c.closed:
		return 0, io.EOF
	case <-timeoutCh:
		return 0, os.ErrDeadlineExceeded
	}
}

func (c *fakeConn) Write(p []byte) (int, error) { return len(p), nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr  { return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1} }
func (c *fakeConn) RemoteAddr() net.Addr { return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2} }

func (c *fakeConn) SetDeadline(t time.Time) error { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline = t
	c.mu.Unlock()
	return nil
}
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *fakeConn) SocketId() uint32     { return c.id }
func (c *fakeConn) PeerSocketId() uint32 { return 0 }
func (c *fakeConn) StreamId() string     { return "" }
func (c *fakeConn) Stats(s *srt.Statistics) {}
func (c *fakeConn) Version() uint32 { return 5 }

var _ srt.Conn = (*fakeConn)(nil)
