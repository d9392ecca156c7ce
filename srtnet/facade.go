package srtnet

import (
	"fmt"
	"net"
	"os"
	"sync"

	srt "github.com/datarhei/gosrt"

	"github.com/cedronius/srtnet/log"
)

// Instance is a single SRT connection-lifecycle facade: either a server
// (single- or multi-client) or a caller, never both at once. Zero value is
// not usable; construct with New.
//
// All exported callback fields are optional except OnClientConnected, which
// StartServer requires. They are read each time an event is dispatched, so
// they must not be mutated while the instance is active.
type Instance struct {
	logger log.Logger

	OnClientConnected     func(peerAddr net.Addr, socket SocketHandle, serverCtx NetworkConnection, info ConnectionInformation) NetworkConnection
	OnReceivedData        func(payload []byte, ctrl MsgCtrl, ctx NetworkConnection, socket SocketHandle)
	OnReceivedDataNoCopy  func(payload []byte, ctrl MsgCtrl, ctx NetworkConnection, socket SocketHandle)
	OnClientDisconnected  func(ctx NetworkConnection, socket SocketHandle)
	OnConnectedToServer   func(ctx NetworkConnection, socket SocketHandle, info ConnectionInformation)

	mu   sync.Mutex
	mode Mode
	srv  *serverState
	cli  *clientWorker
}

// New builds an idle Instance. A nil logger falls back to a default
// component logger writing to stdout.
func New(logger log.Logger) *Instance {
	if logger == nil {
		logger = log.New("srtnet").WithOutput(log.NewConsoleWriter(os.Stdout, log.Linfo, false))
	}
	return &Instance{logger: logger, mode: Unknown}
}

// StartServer binds and starts listening per opts. It fails if
// OnClientConnected is not installed, if the instance is already active, or
// if the transport configuration or bind is rejected.
func (i *Instance) StartServer(opts ServerOptions) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.mode != Unknown {
		return false
	}

	if i.OnClientConnected == nil {
		i.logger.Warn().Log("StartServer requires OnClientConnected")
		return false
	}

	opts.normalize()

	if opts.IPv6Only {
		i.logger.Warn().Log("IPv6Only is applied to local address resolution only, not to the transport")
	}

	st, err := newServerState(i, opts, i.logger.WithComponent("srtnet.server"))
	if err != nil {
		i.logger.Warn().Log("StartServer failed: %s", err)
		return false
	}

	i.srv = st
	i.mode = Server
	st.start()

	return true
}

// StartClient resolves the remote address and, unless
// opts.FailOnConnectionError is false, performs the first connect attempt
// synchronously. Address resolution and configuration failures always fail
// the call; a first-attempt connect failure only fails it when
// FailOnConnectionError is set.
func (i *Instance) StartClient(opts ClientOptions) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.mode != Unknown {
		return false
	}

	opts.normalize()

	addr, cfg, err := createCallerConfig(opts)
	if err != nil {
		i.logger.Warn().Log("StartClient failed to resolve/configure: %s", err)
		return false
	}

	w := newClientWorker(addr, cfg, opts, i.logger.WithComponent("srtnet.client"))
	w.onConnected = i.dispatchConnectedToServer
	w.onDisconnected = i.dispatchClientDisconnected
	w.onData = i.dispatchClientData

	var firstConn srt.Conn
	if opts.FailOnConnectionError {
		conn, err := w.connectOnce()
		if err != nil {
			i.logger.Debug().Log("initial connect to %s failed: %s", addr, err)
			return false
		}
		firstConn = conn
	}

	i.cli = w
	i.mode = Client

	go w.run(firstConn, nil)

	return true
}

// Stop tears down whichever mode is active and always returns true.
func (i *Instance) Stop() bool {
	i.mu.Lock()
	mode := i.mode
	srv := i.srv
	cli := i.cli
	i.mode = Unknown
	i.srv = nil
	i.cli = nil
	i.mu.Unlock()

	switch mode {
	case Server:
		if srv != nil {
			srv.stop()
		}
	case Client:
		if cli != nil {
			cli.stopLoop()
			cli.wait()
		}
	}

	return true
}

// SendData writes payload to target (server mode) or to the cached server
// connection (client mode, target ignored). It fails fast, without touching
// the socket, if payload exceeds the connection's live-mode payload maximum.
func (i *Instance) SendData(payload []byte, ctrl MsgCtrl, target SocketHandle) bool {
	i.mu.Lock()
	mode := i.mode
	srv := i.srv
	cli := i.cli
	i.mu.Unlock()

	switch mode {
	case Server:
		if srv == nil || target == NoSocket {
			return false
		}
		if len(payload) > srv.maxPayload() {
			i.logger.Warn().Log("SendData: %s", fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(payload), srv.maxPayload()))
			return false
		}
		return srv.sendTo(target, payload)
	case Client:
		if cli == nil {
			return false
		}
		if len(payload) > cli.maxPayload() {
			i.logger.Warn().Log("SendData: %s", fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(payload), cli.maxPayload()))
			return false
		}
		_, err := cli.send(payload)
		return err == nil
	default:
		return false
	}
}

// GetStatistics fills out with the target connection's statistics. In
// client mode target is ignored: there is only ever one connection. clear
// and instantaneous are accepted for interface parity with the reference
// but are not forwarded to gosrt, whose Stats call always returns the
// running accumulators.
func (i *Instance) GetStatistics(out *Statistics, clear, instantaneous bool, target SocketHandle) bool {
	i.mu.Lock()
	mode := i.mode
	srv := i.srv
	cli := i.cli
	i.mu.Unlock()

	if out == nil {
		return false
	}

	switch mode {
	case Server:
		if srv == nil {
			return false
		}
		return srv.statsFor(target, out)
	case Client:
		if cli == nil {
			return false
		}
		return cli.stats(out, clear, instantaneous)
	default:
		return false
	}
}

// GetActiveClients returns a snapshot of connected clients' contexts. Empty
// outside server mode.
func (i *Instance) GetActiveClients() []NetworkConnection {
	i.mu.Lock()
	srv := i.srv
	mode := i.mode
	i.mu.Unlock()

	if mode != Server || srv == nil {
		return nil
	}
	return srv.activeClients()
}

// GetActiveClientSockets returns a snapshot of connected clients' socket
// handles. Empty outside server mode.
func (i *Instance) GetActiveClientSockets() []SocketHandle {
	i.mu.Lock()
	srv := i.srv
	mode := i.mode
	i.mu.Unlock()

	if mode != Server || srv == nil {
		return nil
	}
	return srv.activeSockets()
}

// GetConnectedServer returns the cached client socket and context, or
// (NoSocket, nil) if not connected.
func (i *Instance) GetConnectedServer() (SocketHandle, NetworkConnection) {
	i.mu.Lock()
	cli := i.cli
	mode := i.mode
	i.mu.Unlock()

	if mode != Client || cli == nil {
		return NoSocket, nil
	}

	handle, ok := cli.currentSocket()
	if !ok {
		return NoSocket, nil
	}

	return handle, cli.opts.ClientContext
}

// IsConnectedToServer reports whether the client worker currently has a live
// connection.
func (i *Instance) IsConnectedToServer() bool {
	i.mu.Lock()
	cli := i.cli
	mode := i.mode
	i.mu.Unlock()

	return mode == Client && cli != nil && cli.connected.Load()
}

// GetBoundSocket returns a stable, non-zero handle for the listening socket
// while a server is bound, or NoSocket otherwise. gosrt's Listener carries
// no protocol-level socket id of its own (only accepted Conns do), so the
// bound port stands in for it: it is never compared against accepted-client
// handles for anything but presence.
func (i *Instance) GetBoundSocket() SocketHandle {
	i.mu.Lock()
	srv := i.srv
	mode := i.mode
	i.mu.Unlock()

	if mode != Server || srv == nil {
		return NoSocket
	}

	port := srv.boundPortNow()
	if port == 0 {
		return NoSocket
	}
	return SocketHandle(port)
}

// GetLocallyBoundPort returns the local port in use: the listener's bound
// port in server mode, or the connected socket's local port in client mode.
func (i *Instance) GetLocallyBoundPort() uint16 {
	i.mu.Lock()
	srv := i.srv
	cli := i.cli
	mode := i.mode
	i.mu.Unlock()

	switch mode {
	case Server:
		if srv == nil {
			return 0
		}
		return srv.boundPortNow()
	case Client:
		if cli == nil {
			return 0
		}
		return cli.localPort()
	default:
		return 0
	}
}

// GetCurrentMode reports whether the instance is idle, serving, or calling.
func (i *Instance) GetCurrentMode() Mode {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.mode
}

func (i *Instance) invokeClientConnected(peerAddr net.Addr, socket SocketHandle, serverCtx NetworkConnection, info ConnectionInformation) NetworkConnection {
	if i.OnClientConnected == nil {
		return nil
	}
	return i.OnClientConnected(peerAddr, socket, serverCtx, info)
}

func (i *Instance) invokeReceivedData(payload []byte, ctrl MsgCtrl, ctx NetworkConnection, socket SocketHandle) {
	if i.OnReceivedDataNoCopy != nil {
		i.OnReceivedDataNoCopy(payload, ctrl, ctx, socket)
		return
	}
	if i.OnReceivedData != nil {
		i.OnReceivedData(payload, ctrl, ctx, socket)
	}
}

func (i *Instance) invokeClientDisconnected(ctx NetworkConnection, socket SocketHandle) {
	if i.OnClientDisconnected != nil {
		i.OnClientDisconnected(ctx, socket)
	}
}

func (i *Instance) dispatchClientData(handle SocketHandle, ctx NetworkConnection, payload []byte) {
	i.invokeReceivedData(payload, DefaultMsgCtrl(), ctx, handle)
}

func (i *Instance) dispatchClientDisconnected(handle SocketHandle, ctx NetworkConnection) {
	i.invokeClientDisconnected(ctx, handle)
}

func (i *Instance) dispatchConnectedToServer(handle SocketHandle, ctx NetworkConnection, info ConnectionInformation) {
	if i.OnConnectedToServer != nil {
		i.OnConnectedToServer(ctx, handle, info)
	}
}
