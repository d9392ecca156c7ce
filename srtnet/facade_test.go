package srtnet

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	srt "github.com/datarhei/gosrt"
	"github.com/stretchr/testify/require"
)

func TestStartStopBasic(t *testing.T) {
	srv := New(nil)

	var connectedCount int32
	srv.OnClientConnected = func(peerAddr net.Addr, socket SocketHandle, serverCtx NetworkConnection, info ConnectionInformation) NetworkConnection {
		atomic.AddInt32(&connectedCount, 1)
		return 1111
	}

	var serverDisconnected int32
	srv.OnClientDisconnected = func(ctx NetworkConnection, socket SocketHandle) {
		atomic.AddInt32(&serverDisconnected, 1)
	}

	ok := srv.StartServer(ServerOptions{
		LocalHost:     "127.0.0.1",
		LocalPort:     18009,
		PSK:           "Th1$_is_4n_0pt10N4L_P$k",
		ServerContext: 42,
	})
	require.True(t, ok)
	defer srv.Stop()

	cli := New(nil)
	ok = cli.StartClient(ClientOptions{
		RemoteHost:            "127.0.0.1",
		RemotePort:            18009,
		PSK:                   "Th1$_is_4n_0pt10N4L_P$k",
		FailOnConnectionError: true,
		ClientContext:         2222,
	})
	require.True(t, ok)

	require.Eventually(t, cli.IsConnectedToServer, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return len(srv.GetActiveClients()) == 1 }, 3*time.Second, 20*time.Millisecond)

	_, ctx := cli.GetConnectedServer()
	require.Equal(t, 2222, ctx)

	require.True(t, cli.Stop())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&serverDisconnected) == 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestPSKMismatch(t *testing.T) {
	srv := New(nil)
	srv.OnClientConnected = func(peerAddr net.Addr, socket SocketHandle, serverCtx NetworkConnection, info ConnectionInformation) NetworkConnection {
		return struct{}{}
	}

	ok := srv.StartServer(ServerOptions{LocalHost: "127.0.0.1", LocalPort: 18010, PSK: "correct-horse-battery-staple"})
	require.True(t, ok)
	defer srv.Stop()

	cli := New(nil)
	ok = cli.StartClient(ClientOptions{
		RemoteHost:            "127.0.0.1",
		RemotePort:            18010,
		PSK:                   "wrong-password",
		FailOnConnectionError: true,
	})
	require.False(t, ok)
}

func TestEchoRoundTrip(t *testing.T) {
	srv := New(nil)

	srv.OnClientConnected = func(peerAddr net.Addr, socket SocketHandle, serverCtx NetworkConnection, info ConnectionInformation) NetworkConnection {
		return struct{}{}
	}
	srv.OnReceivedData = func(payload []byte, ctrl MsgCtrl, ctx NetworkConnection, socket SocketHandle) {
		echoed := make([]byte, len(payload))
		copy(echoed, payload)
		srv.SendData(echoed, DefaultMsgCtrl(), socket)
	}

	require.True(t, srv.StartServer(ServerOptions{LocalHost: "127.0.0.1", LocalPort: 18011}))
	defer srv.Stop()

	var received []byte
	var receivedOnce sync.Once
	done := make(chan struct{})

	cli := New(nil)
	cli.OnReceivedData = func(payload []byte, ctrl MsgCtrl, ctx NetworkConnection, socket SocketHandle) {
		receivedOnce.Do(func() {
			received = append([]byte(nil), payload...)
			close(done)
		})
	}

	require.True(t, cli.StartClient(ClientOptions{
		RemoteHost:            "127.0.0.1",
		RemotePort:            18011,
		FailOnConnectionError: true,
	}))
	defer cli.Stop()

	require.Eventually(t, cli.IsConnectedToServer, 3*time.Second, 20*time.Millisecond)

	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = 0x01
	}

	require.True(t, cli.SendData(payload, DefaultMsgCtrl(), NoSocket))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	require.Equal(t, payload, received)
}

func TestOversizeSendRejected(t *testing.T) {
	srv := New(nil)
	srv.OnClientConnected = func(peerAddr net.Addr, socket SocketHandle, serverCtx NetworkConnection, info ConnectionInformation) NetworkConnection {
		return struct{}{}
	}
	require.True(t, srv.StartServer(ServerOptions{LocalHost: "127.0.0.1", LocalPort: 18012}))
	defer srv.Stop()

	cli := New(nil)
	require.True(t, cli.StartClient(ClientOptions{RemoteHost: "127.0.0.1", RemotePort: 18012, FailOnConnectionError: true}))
	defer cli.Stop()

	require.Eventually(t, cli.IsConnectedToServer, 3*time.Second, 20*time.Millisecond)

	oversized := make([]byte, srt.MAX_PAYLOAD_SIZE+1)
	require.False(t, cli.SendData(oversized, DefaultMsgCtrl(), NoSocket))
}

func TestFailOnConnectionErrorFlag(t *testing.T) {
	cli := New(nil)
	ok := cli.StartClient(ClientOptions{
		RemoteHost:            "127.0.0.1",
		RemotePort:            18099,
		FailOnConnectionError: true,
	})
	require.False(t, ok)

	cli2 := New(nil)
	ok = cli2.StartClient(ClientOptions{
		RemoteHost:            "127.0.0.1",
		RemotePort:            18098,
		FailOnConnectionError: false,
	})
	require.True(t, ok)
	require.False(t, cli2.IsConnectedToServer())
	cli2.Stop()
}

func TestSingleClientModeRejectsSecondConnection(t *testing.T) {
	srv := New(nil)
	srv.OnClientConnected = func(peerAddr net.Addr, socket SocketHandle, serverCtx NetworkConnection, info ConnectionInformation) NetworkConnection {
		return struct{}{}
	}

	require.True(t, srv.StartServer(ServerOptions{LocalHost: "127.0.0.1", LocalPort: 18013, SingleClient: true}))
	defer srv.Stop()

	first := New(nil)
	require.True(t, first.StartClient(ClientOptions{RemoteHost: "127.0.0.1", RemotePort: 18013, FailOnConnectionError: true}))
	defer first.Stop()

	require.Eventually(t, first.IsConnectedToServer, 3*time.Second, 20*time.Millisecond)

	second := New(nil)
	ok := second.StartClient(ClientOptions{RemoteHost: "127.0.0.1", RemotePort: 18013, FailOnConnectionError: true})
	require.False(t, ok)
}
