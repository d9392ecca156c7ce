package srtnet

import (
	"errors"

	srt "github.com/datarhei/gosrt"

	"github.com/cedronius/srtnet/log"
)

// acceptor runs the blocking accept loop for a listening server socket. The
// pre-shared key is checked during the handshake by accept; each connection
// that passes is handed to onAccept, which invokes the application's
// clientConnected callback; onAccept returning false means the connection
// should be rejected before any data is exchanged.
type acceptor struct {
	listener srt.Listener
	psk      string
	logger   log.Logger

	onAccept func(conn srt.Conn) bool

	stop chan struct{}
	done chan struct{}
}

func newAcceptor(ln srt.Listener, psk string, logger log.Logger, onAccept func(conn srt.Conn) bool) *acceptor {
	return &acceptor{
		listener: ln,
		psk:      psk,
		logger:   logger,
		onAccept: onAccept,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// checkPassphrase enforces the spec's PSK contract: a server configured with
// a passphrase only accepts encrypted connections that decrypt with it; a
// server with none only accepts unencrypted connections. Any mismatch is a
// handshake-level rejection, mirroring the reference's own accept callback.
func (a *acceptor) checkPassphrase(req srt.ConnRequest) bool {
	if len(a.psk) != 0 {
		if !req.IsEncrypted() {
			return false
		}
		if err := req.SetPassphrase(a.psk); err != nil {
			return false
		}
		return true
	}

	return !req.IsEncrypted()
}

// accept implements srt.AcceptFunc. Every accepted connection is granted
// PUBLISH: the facade exposes a single duplex byte stream per connection, it
// does not distinguish publishers from subscribers the way a media server
// built directly on gosrt would.
func (a *acceptor) accept(req srt.ConnRequest) srt.ConnType {
	if !a.checkPassphrase(req) {
		a.logger.Warn().Log("rejected connection from %s: passphrase mismatch", req.RemoteAddr())
		return srt.REJECT
	}

	return srt.PUBLISH
}

// runMulti accepts connections until close() is called or the listener is closed.
// Each successfully accepted connection is passed to onAccept; a false
// return closes it immediately without further ceremony.
func (a *acceptor) runMulti() {
	defer close(a.done)

	for {
		conn, _, err := a.listener.Accept(a.accept)
		if err != nil {
			select {
			case <-a.stop:
				return
			default:
			}

			if errors.Is(err, srt.ErrListenerClosed) {
				return
			}

			a.logger.Warn().Log("accept failed: %s", err)
			continue
		}

		if conn == nil {
			// Rejected inside accept(); nothing more to do for this attempt.
			continue
		}

		if !a.onAccept(conn) {
			conn.Close()
		}
	}
}

// close stops the accept loop by closing the underlying listener; Accept
// unblocks with ErrListenerClosed.
func (a *acceptor) close() {
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	a.listener.Close()
}
