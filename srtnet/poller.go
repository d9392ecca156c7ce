package srtnet

import (
	"errors"
	"os"
	"sync"
	"time"

	srt "github.com/datarhei/gosrt"
)

// eventKind classifies a pollEvent the way the reference epoll wrapper does:
// a socket is either readable or broken.
type eventKind int

const (
	eventReadable eventKind = iota
	eventBroken
)

// pollEvent is one readiness notification for a socket. gosrt's Conn only
// exposes a blocking Read, not a separate "is data waiting" check, so the
// forwarder goroutine that plays the epoll role already has the message in
// hand by the time it reports readable -- payload carries it so the event
// engine does not issue a second, redundant read.
type pollEvent struct {
	handle  SocketHandle
	kind    eventKind
	payload []byte
	err     error
}

// poller is a Go-shaped stand-in for the SRT library's edge-triggered
// multi-socket epoll: gosrt does not expose select/epoll semantics on top of
// its Conn, so each added socket gets its own reader goroutine which turns
// its blocking Read into readiness events on a shared channel. Wait then
// mirrors srt_epoll_wait's timeout and per-call batch cap.
type poller struct {
	mu      sync.Mutex
	sockets map[SocketHandle]*pollSocket
	events  chan pollEvent
}

type pollSocket struct {
	conn srt.Conn
	stop chan struct{}
	once sync.Once
}

func newPoller() *poller {
	return &poller{
		sockets: make(map[SocketHandle]*pollSocket),
		events:  make(chan pollEvent, 256),
	}
}

// add registers conn under handle and starts forwarding its readiness.
// Adding an already-registered handle is a no-op.
func (p *poller) add(handle SocketHandle, conn srt.Conn) {
	p.mu.Lock()
	if _, ok := p.sockets[handle]; ok {
		p.mu.Unlock()
		return
	}

	ps := &pollSocket{conn: conn, stop: make(chan struct{})}
	p.sockets[handle] = ps
	p.mu.Unlock()

	go p.forward(handle, ps)
}

// remove stops forwarding readiness for handle. It does not close the
// underlying socket; the caller does that once it owns the removal.
// Removing an unregistered handle is a no-op.
func (p *poller) remove(handle SocketHandle) {
	p.mu.Lock()
	ps, ok := p.sockets[handle]
	if ok {
		delete(p.sockets, handle)
	}
	p.mu.Unlock()

	if ok {
		ps.once.Do(func() { close(ps.stop) })
	}
}

func (p *poller) socketHandles() []SocketHandle {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]SocketHandle, 0, len(p.sockets))
	for h := range p.sockets {
		out = append(out, h)
	}
	return out
}

// wait blocks for up to timeout, returning as soon as at least one event has
// arrived and up to maxEventsPerWait have been collected, whichever comes
// first. It returns an empty slice on a plain timeout.
func (p *poller) wait(timeout time.Duration) []pollEvent {
	deadline := time.Now().Add(timeout)

	var batch []pollEvent

	for len(batch) < maxEventsPerWait {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		timer := time.NewTimer(remaining)
		select {
		case e := <-p.events:
			timer.Stop()
			batch = append(batch, e)
		case <-timer.C:
			return batch
		}

		// Collect whatever else is already queued without waiting further.
		for len(batch) < maxEventsPerWait {
			select {
			case e := <-p.events:
				batch = append(batch, e)
			default:
				return batch
			}
		}
	}

	return batch
}

// forward turns conn's blocking Read into readable/broken events. It sets a
// read deadline on every iteration so that a socket implementation which
// honors it (as the test double in poller_test.go does) wakes up promptly
// for remove() even with no traffic; gosrt v0.5.4's own SetReadDeadline is a
// no-op, so on a real connection this goroutine only unblocks when data
// arrives or the peer/Close breaks the Read.
func (p *poller) forward(handle SocketHandle, ps *pollSocket) {
	buf := make([]byte, srt.MAX_PAYLOAD_SIZE)

	for {
		select {
		case <-ps.stop:
			return
		default:
		}

		ps.conn.SetReadDeadline(time.Now().Add(pollTimeout))

		n, err := ps.conn.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}

			select {
			case p.events <- pollEvent{handle: handle, kind: eventBroken, err: err}:
			case <-ps.stop:
			}

			return
		}

		// A socket removed while Read was blocked must not report data.
		select {
		case <-ps.stop:
			return
		default:
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		select {
		case p.events <- pollEvent{handle: handle, kind: eventReadable, payload: payload}:
		case <-ps.stop:
			return
		}
	}
}
