package srtnet

import (
	"fmt"
	"time"

	srt "github.com/datarhei/gosrt"
)

// Fixed design values, not exposed as configuration. These mirror the
// constants the reference implementation hard-codes.
const (
	// pollTimeout bounds a single Poller.Wait call so the event engine can
	// observe a stop request promptly.
	pollTimeout = 500 * time.Millisecond

	// maxEventsPerWait caps how many ready sockets are harvested per wait;
	// the rest are picked up on the next iteration. This is the Go analogue
	// of the reference's MAX_WORKERS=5 epoll batch cap -- it does not size a
	// thread pool.
	maxEventsPerWait = 5

	// maxConnectTimeout is the hard ceiling on a single blocking connect
	// attempt, regardless of the configured peer-idle timeout.
	maxConnectTimeout = 1 * time.Second

	defaultPeerIdleTimeout = 5 * time.Second
)

// ServerOptions configures StartServer.
type ServerOptions struct {
	LocalHost string
	LocalPort uint16

	Reorder         int
	Latency         time.Duration
	OverheadPercent int
	MTU             int
	PeerIdleTimeout time.Duration
	PSK             string

	// SingleClient restricts the server to one connection at a time: once a
	// client is accepted the listening socket is torn down and recreated
	// only after that client disconnects.
	SingleClient bool

	// IPv6Only restricts the listener to IPv6. gosrt's transport does not
	// support this option (its Config.Validate rejects it outright), so it
	// is honored only at the address-resolution stage: an empty or named
	// local host is resolved to an IPv6 address (an IPv4 literal is used as
	// given) and a warning is logged instead of failing startup.
	IPv6Only bool

	// ServerContext is handed to the clientConnected callback for every
	// accepted connection; it is not itself a NetworkConnection for any one
	// connection.
	ServerContext NetworkConnection
}

// ClientOptions configures StartClient. The OS always picks the client's
// local bind address and port. Setting LocalHost or LocalPort only makes
// StartClient check that the local address resolves; it does not pin the
// client to that endpoint.
type ClientOptions struct {
	RemoteHost string
	RemotePort uint16

	LocalHost string
	LocalPort uint16

	Reorder         int
	Latency         time.Duration
	OverheadPercent int
	MTU             int
	PeerIdleTimeout time.Duration
	PSK             string
	StreamId        string

	// FailOnConnectionError, if true, makes the first connect attempt
	// synchronous: StartClient returns false without spawning a worker if it
	// fails. If false, a failed first attempt still starts a worker that
	// keeps retrying. Address resolution failure always fails StartClient
	// outright, regardless of this flag.
	FailOnConnectionError bool

	// ClientContext is the NetworkConnection delivered to every callback for
	// this client's connection to the server.
	ClientContext NetworkConnection
}

func (o *ServerOptions) normalize() {
	if o.PeerIdleTimeout <= 0 {
		o.PeerIdleTimeout = defaultPeerIdleTimeout
	}
}

func (o *ClientOptions) normalize() {
	if o.PeerIdleTimeout <= 0 {
		o.PeerIdleTimeout = defaultPeerIdleTimeout
	}
}

// role distinguishes the socket-factory configuration for a listener from
// that for a caller: a few options (stream id, IPv6-only) apply to one side
// only.
type role int

const (
	roleListener role = iota
	roleCaller
)

// buildTransportConfig translates the fixed configuration surface from
// section 6 of the connection lifecycle spec into a gosrt.Config. It applies
// exactly the options this package supports; everything else keeps gosrt's
// documented defaults.
func buildTransportConfig(r role, reorder int, latency time.Duration, overheadPercent, mtu int, peerIdleTimeout time.Duration, psk, streamId string) (srt.Config, error) {
	c := srt.DefaultConfig()

	c.MessageAPI = true

	c.LossMaxTTL = uint32(reorder)
	c.Latency = latency
	if overheadPercent > 0 {
		c.OverheadBW = int64(overheadPercent)
	}
	c.PeerIdleTimeout = peerIdleTimeout

	if mtu > 0 {
		c.MSS = uint32(mtu)
		payload := int(c.MSS) - srt.SRT_HEADER_SIZE - srt.UDP_HEADER_SIZE
		if payload < srt.MIN_PAYLOAD_SIZE {
			return srt.Config{}, fmt.Errorf("%w: MTU %d leaves no room for a payload", ErrConfigurationRejected, mtu)
		}
		c.PayloadSize = uint32(payload)
	}

	if len(psk) != 0 {
		c.Passphrase = psk
		c.PBKeylen = 16
	}

	if r == roleCaller && len(streamId) != 0 {
		c.StreamId = streamId
	}

	if err := c.Validate(); err != nil {
		return srt.Config{}, fmt.Errorf("%w: %s", ErrConfigurationRejected, err)
	}

	return c, nil
}

// connectTimeout returns the peer-idle timeout capped at maxConnectTimeout,
// per the client loop's "bounded blocking calls" design.
func connectTimeout(peerIdleTimeout time.Duration) time.Duration {
	if peerIdleTimeout <= 0 || peerIdleTimeout > maxConnectTimeout {
		return maxConnectTimeout
	}
	return peerIdleTimeout
}
