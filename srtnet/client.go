package srtnet

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	srt "github.com/datarhei/gosrt"

	"github.com/cedronius/srtnet/log"
)

// clientWorker owns the reconnecting caller loop described in the client
// loop section of the connection lifecycle: one attempt at a time, no
// backoff beyond the connect timeout itself, looping back after every
// broken connection until stop is requested.
type clientWorker struct {
	addr string
	cfg  srt.Config
	opts ClientOptions

	logger log.Logger

	connected atomic.Bool

	mu       sync.Mutex
	conn     srt.Conn
	socketId SocketHandle

	onConnected    func(handle SocketHandle, ctx NetworkConnection, info ConnectionInformation)
	onDisconnected func(handle SocketHandle, ctx NetworkConnection)
	onData         func(handle SocketHandle, ctx NetworkConnection, payload []byte)

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newClientWorker(addr string, cfg srt.Config, opts ClientOptions, logger log.Logger) *clientWorker {
	return &clientWorker{
		addr:   addr,
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// connectOnce performs exactly one blocking dial attempt. It never retries;
// callers decide whether to loop.
func (w *clientWorker) connectOnce() (srt.Conn, error) {
	conn, err := srt.Dial("srt", w.addr, w.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectFailed, err)
	}
	return conn, nil
}

// run is the reconnecting loop: connect, recv/dispatch until broken, repeat
// unless stop has been requested. It is meant to be launched with go after
// an initial connect attempt has already been resolved by startClient (which
// needs the outcome of the first attempt synchronously when
// FailOnConnectionError is set).
func (w *clientWorker) run(firstConn srt.Conn, firstErr error) {
	defer close(w.done)

	conn := firstConn
	err := firstErr

	for {
		select {
		case <-w.stop:
			if conn != nil {
				conn.Close()
			}
			return
		default:
		}

		if conn == nil {
			conn, err = w.connectOnce()
			if err != nil {
				w.logger.Debug().Log("connect attempt to %s failed: %s", w.addr, err)
				select {
				case <-w.stop:
					return
				default:
					continue
				}
			}
		}

		w.attach(conn)
		w.recvLoop(conn)
		w.detach()

		conn = nil
	}
}

// attach records the freshly connected socket and notifies the application.
// The client worker drives its own single-socket recv/dispatch loop rather
// than sharing the server's poller/engine, since it only ever has one
// connection at a time.
func (w *clientWorker) attach(conn srt.Conn) {
	handle := SocketHandle(conn.SocketId())

	w.mu.Lock()
	w.conn = conn
	w.socketId = handle
	w.mu.Unlock()

	w.connected.Store(true)

	if w.onConnected != nil {
		w.onConnected(handle, w.opts.ClientContext, connectionInfo(conn))
	}
}

// detach follows the client loop's disconnect order: invoke clientDisconnected
// while the socket is still live, then close it, then clear the connected
// flag. This matches the server path (dispatchDisconnect invokes
// clientDisconnected before closing the accepted connection). When the loop
// ends because of Stop, stopLoop has already closed the socket, so the
// callback runs after that close.
func (w *clientWorker) detach() {
	w.mu.Lock()
	handle := w.socketId
	conn := w.conn
	w.mu.Unlock()

	if w.onDisconnected != nil {
		w.onDisconnected(handle, w.opts.ClientContext)
	}

	if conn != nil {
		conn.Close()
	}

	w.mu.Lock()
	w.conn = nil
	w.mu.Unlock()

	w.connected.Store(false)
}

// recvLoop mirrors the event engine for exactly one socket: it blocks on
// Read, dispatches payloads, and returns as soon as the socket is broken.
// The read deadline only bounds Read on connections that honor it; stop is
// observed promptly because stopLoop closes the socket, which breaks Read.
func (w *clientWorker) recvLoop(conn srt.Conn) {
	buf := make([]byte, srt.MAX_PAYLOAD_SIZE)
	handle := SocketHandle(conn.SocketId())

	for {
		select {
		case <-w.stop:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(pollTimeout))

		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return
		}

		if w.onData != nil {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			w.onData(handle, w.opts.ClientContext, payload)
		}
	}
}

func (w *clientWorker) send(p []byte) (int, error) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return 0, ErrSendFailed
	}

	return conn.Write(p)
}

func (w *clientWorker) maxPayload() int {
	return int(w.cfg.PayloadSize)
}

func (w *clientWorker) localPort() uint16 {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return 0
	}

	return boundPort(conn.LocalAddr())
}

func (w *clientWorker) currentSocket() (SocketHandle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return NoSocket, false
	}
	return w.socketId, true
}

func (w *clientWorker) stats(out *Statistics, clear, instantaneous bool) bool {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return false
	}

	conn.Stats(out)
	return true
}

// stopLoop requests the loop to end and closes the current socket, if any,
// to unblock a pending Read.
func (w *clientWorker) stopLoop() {
	w.once.Do(func() { close(w.stop) })

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (w *clientWorker) wait() {
	<-w.done
}

// connectionInfo builds a ConnectionInformation snapshot from a live
// connection. gosrt exposes only the handshake version (4 or 5), not a
// dotted peer library version string, so PeerSRTVersion is that number
// stringified; the negotiated latency comes from the receiver-side TSBPD
// delay in the connection's statistics.
func connectionInfo(conn srt.Conn) ConnectionInformation {
	var s Statistics
	conn.Stats(&s)

	return ConnectionInformation{
		PeerSRTVersion:    strconv.Itoa(int(conn.Version())),
		NegotiatedLatency: int(s.Instantaneous.MsRecvTsbPdDelay),
		StreamId:          conn.StreamId(),
	}
}
