// Command srtnet-echo runs a single-client SRT echo server: it accepts one
// caller, tags the connection with a freshly minted id, and writes back
// every payload it reads until the client disconnects or the process is
// interrupted.
package main

import (
	"net"
	"os"
	"os/signal"
	"strconv"

	"github.com/google/uuid"

	_ "github.com/joho/godotenv/autoload"

	"github.com/cedronius/srtnet/log"
	"github.com/cedronius/srtnet/srtnet"
)

func main() {
	logger := log.New("srtnet-echo").WithOutput(log.NewConsoleWriter(os.Stderr, log.Linfo, true))

	host := envOr("SRTNET_HOST", "0.0.0.0")
	port := envPortOr("SRTNET_PORT", 6001)
	psk := os.Getenv("SRTNET_PSK")

	inst := srtnet.New(logger)

	inst.OnClientConnected = func(peerAddr net.Addr, socket srtnet.SocketHandle, serverCtx srtnet.NetworkConnection, info srtnet.ConnectionInformation) srtnet.NetworkConnection {
		id := uuid.New()
		logger.Info().WithField("peer", peerAddr.String()).WithField("connectionId", id.String()).Log("client connected")
		return id
	}

	inst.OnReceivedData = func(payload []byte, ctrl srtnet.MsgCtrl, ctx srtnet.NetworkConnection, socket srtnet.SocketHandle) {
		echoed := make([]byte, len(payload))
		copy(echoed, payload)
		inst.SendData(echoed, srtnet.DefaultMsgCtrl(), socket)
	}

	inst.OnClientDisconnected = func(ctx srtnet.NetworkConnection, socket srtnet.SocketHandle) {
		id, _ := ctx.(uuid.UUID)
		logger.Info().WithField("connectionId", id.String()).Log("client disconnected")
	}

	ok := inst.StartServer(srtnet.ServerOptions{
		LocalHost:    host,
		LocalPort:    port,
		PSK:          psk,
		SingleClient: true,
	})
	if !ok {
		logger.Error().Log("failed to start server on %s:%d", host, port)
		os.Exit(1)
	}

	logger.Info().Log("listening on %s:%d", host, port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	inst.Stop()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envPortOr(key string, fallback uint16) uint16 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return fallback
	}
	return uint16(n)
}
