package srtnet

import (
	"errors"
	"sync"

	srt "github.com/datarhei/gosrt"

	"github.com/cedronius/srtnet/log"
)

// serverState owns everything a running server needs: the shared
// Poller/Registry/Event-Engine trio, the accept-side machinery, and, for
// single-client mode, the listener-teardown-and-recreate cycle described in
// the connection lifecycle spec.
type serverState struct {
	opts   ServerOptions
	cfg    srt.Config
	addr   string
	logger log.Logger
	inst   *Instance

	poller   *poller
	registry *registry
	engine   *engine

	mu        sync.Mutex
	listener  srt.Listener
	boundPort uint16
	conns     map[SocketHandle]srt.Conn

	acc      *acceptor
	departed chan SocketHandle

	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func newServerState(inst *Instance, opts ServerOptions, logger log.Logger) (*serverState, error) {
	ln, cfg, err := createListener(opts)
	if err != nil {
		return nil, err
	}

	s := &serverState{
		opts:      opts,
		cfg:       cfg,
		logger:    logger,
		inst:      inst,
		poller:    newPoller(),
		registry:  newRegistry(),
		listener:  ln,
		boundPort: boundPort(ln.Addr()),
		conns:     make(map[SocketHandle]srt.Conn),
		departed:  make(chan SocketHandle, 1),
		stopCh:    make(chan struct{}),
	}
	s.addr = ln.Addr().String()

	s.engine = newEngine(s.poller, s.registry, logger, s.dispatchData, s.dispatchDisconnect)

	return s, nil
}

func (s *serverState) start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.engine.run()
	}()

	if s.opts.SingleClient {
		s.wg.Add(1)
		go s.runSingleClient()
		return
	}

	s.acc = newAcceptor(s.listener, s.opts.PSK, s.logger.WithComponent("srtnet.accept"), s.acceptMulti)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acc.runMulti()
	}()
}

// acceptClient runs the application's clientConnected callback and, if
// accepted, registers the connection everywhere it needs to be tracked. It
// returns false to signal rejection.
func (s *serverState) acceptClient(conn srt.Conn) bool {
	handle := SocketHandle(conn.SocketId())

	ctx := s.inst.invokeClientConnected(conn.RemoteAddr(), handle, s.opts.ServerContext, connectionInfo(conn))
	if ctx == nil {
		return false
	}

	s.registry.insert(handle, ctx)

	s.mu.Lock()
	s.conns[handle] = conn
	s.mu.Unlock()

	s.poller.add(handle, conn)

	return true
}

// acceptMulti is the acceptor callback used in multi-client mode.
func (s *serverState) acceptMulti(conn srt.Conn) bool {
	return s.acceptClient(conn)
}

// runSingleClient rebuilds the listener between clients: accept exactly one,
// tear the listener down for the duration of that connection, and rebuild it
// once the client is gone.
func (s *serverState) runSingleClient() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()

		if ln == nil {
			var err error
			ln, s.cfg, err = createListenerAt(s.addr, s.cfg)
			if err != nil {
				s.logger.Warn().Log("failed to recreate single-client listener: %s", err)
				return
			}

			s.mu.Lock()
			s.listener = ln
			s.boundPort = boundPort(ln.Addr())
			s.mu.Unlock()
		}

		acc := newAcceptor(ln, s.opts.PSK, s.logger.WithComponent("srtnet.accept"), nil)

		conn, _, err := ln.Accept(acc.accept)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			if errors.Is(err, srt.ErrListenerClosed) {
				s.mu.Lock()
				s.listener = nil
				s.mu.Unlock()
				continue
			}
			s.logger.Warn().Log("accept failed: %s", err)
			continue
		}

		if conn == nil {
			continue
		}

		if !s.acceptClient(conn) {
			conn.Close()
			continue
		}

		handle := SocketHandle(conn.SocketId())

		// Tear the listener down: nobody else can connect while this one
		// client is attached.
		ln.Close()
		s.mu.Lock()
		s.listener = nil
		s.mu.Unlock()

		s.waitForDeparture(handle)
	}
}

// waitForDeparture blocks until handle leaves the registry, either because
// the engine tore it down (signaled via departed) or stop() drained it.
func (s *serverState) waitForDeparture(handle SocketHandle) {
	if _, ok := s.registry.get(handle); !ok {
		return
	}

	for {
		select {
		case h := <-s.departed:
			if h == handle {
				return
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *serverState) dispatchData(handle SocketHandle, ctx NetworkConnection, payload []byte) {
	s.inst.invokeReceivedData(payload, DefaultMsgCtrl(), ctx, handle)
}

func (s *serverState) dispatchDisconnect(handle SocketHandle, ctx NetworkConnection) {
	s.mu.Lock()
	conn, ok := s.conns[handle]
	delete(s.conns, handle)
	s.mu.Unlock()

	s.inst.invokeClientDisconnected(ctx, handle)

	if ok {
		conn.Close()
	}

	if s.opts.SingleClient {
		select {
		case s.departed <- handle:
		default:
		}
	}
}

func (s *serverState) sendTo(handle SocketHandle, payload []byte) bool {
	s.mu.Lock()
	conn, ok := s.conns[handle]
	s.mu.Unlock()

	if !ok {
		return false
	}

	_, err := conn.Write(payload)
	return err == nil
}

func (s *serverState) statsFor(handle SocketHandle, out *Statistics) bool {
	s.mu.Lock()
	conn, ok := s.conns[handle]
	s.mu.Unlock()

	if !ok {
		return false
	}

	conn.Stats(out)
	return true
}

func (s *serverState) activeClients() []NetworkConnection {
	entries := s.registry.snapshot()
	out := make([]NetworkConnection, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Context)
	}
	return out
}

func (s *serverState) activeSockets() []SocketHandle {
	return s.registry.sockets()
}

func (s *serverState) maxPayload() int {
	return int(s.cfg.PayloadSize)
}

func (s *serverState) boundPortNow() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundPort
}

// stop tears everything down and, per the facade lifecycle, drains the
// registry and delivers a final clientDisconnected for every connection
// still attached.
func (s *serverState) stop() {
	s.once.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}

	s.engine.stopLoop()
	s.wg.Wait()

	entries := s.registry.clear()
	for _, e := range entries {
		s.mu.Lock()
		conn, ok := s.conns[e.Socket]
		delete(s.conns, e.Socket)
		s.mu.Unlock()

		if ok {
			conn.Close()
		}
		s.poller.remove(e.Socket)

		s.inst.invokeClientDisconnected(e.Context, e.Socket)
	}
}

// createListenerAt rebuilds a listener at exactly the address a prior one
// was bound to, for single-client mode's teardown-and-recreate cycle.
func createListenerAt(addr string, cfg srt.Config) (srt.Listener, srt.Config, error) {
	ln, err := srt.Listen("srt", addr, cfg)
	if err != nil {
		return nil, cfg, err
	}
	return ln, cfg, nil
}
