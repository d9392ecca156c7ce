package srtnet

import (
	"sync"

	"github.com/cedronius/srtnet/log"
)

// engine is the server's event dispatch loop (client mode runs its own
// single-socket loop in clientWorker.recvLoop): it drains the poller in a
// tight loop, delivering readable payloads to the application and tearing
// down sockets that report broken.
type engine struct {
	poller   *poller
	registry *registry
	logger   log.Logger

	onData       func(handle SocketHandle, ctx NetworkConnection, payload []byte)
	onDisconnect func(handle SocketHandle, ctx NetworkConnection)

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newEngine(p *poller, r *registry, logger log.Logger, onData func(SocketHandle, NetworkConnection, []byte), onDisconnect func(SocketHandle, NetworkConnection)) *engine {
	return &engine{
		poller:       p,
		registry:     r,
		logger:       logger,
		onData:       onData,
		onDisconnect: onDisconnect,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// run polls until stopLoop() is called. It is meant to be launched with go.
func (e *engine) run() {
	defer close(e.done)

	for {
		select {
		case <-e.stop:
			return
		default:
		}

		events := e.poller.wait(pollTimeout)

		for _, ev := range events {
			ctx, ok := e.registry.get(ev.handle)
			if !ok {
				// Already removed by a concurrent teardown; nothing to
				// deliver.
				continue
			}

			switch ev.kind {
			case eventReadable:
				if e.onData != nil {
					e.onData(ev.handle, ctx, ev.payload)
				}
			case eventBroken:
				e.teardown(ev.handle, ctx)
			}
		}
	}
}

// teardown removes a broken socket from the registry and poller and informs
// the application. Removal happens exactly once even if the same handle
// reports broken more than once before the registry entry is gone.
func (e *engine) teardown(handle SocketHandle, ctx NetworkConnection) {
	if _, ok := e.registry.remove(handle); !ok {
		return
	}

	e.poller.remove(handle)

	if e.onDisconnect != nil {
		e.onDisconnect(handle, ctx)
	}
}

func (e *engine) stopLoop() {
	e.once.Do(func() { close(e.stop) })
}

func (e *engine) wait() {
	<-e.done
}
