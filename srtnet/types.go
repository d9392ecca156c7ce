package srtnet

import (
	srt "github.com/datarhei/gosrt"
)

// Mode is the operating mode of an Instance.
type Mode int

const (
	Unknown Mode = iota
	Server
	Client
)

// String returns a human-readable representation of the mode.
func (m Mode) String() string {
	switch m {
	case Server:
		return "server"
	case Client:
		return "client"
	default:
		return "unknown"
	}
}

// SocketHandle identifies a connection for the lifetime it is known to this
// package: from the moment it is accepted or connected until it is removed
// from the Registry. 0 means "no socket".
type SocketHandle uint32

// NoSocket is the sentinel handle meaning "none".
const NoSocket SocketHandle = 0

// NetworkConnection is the application's opaque per-connection context. It
// is attached at accept time (server) or at StartClient (client) and handed
// back on every callback for that socket. Callers downcast it on their own
// terms; this package never inspects it.
type NetworkConnection = any

// ConnectionInformation is populated right after a connection is
// established and handed to clientConnected / connectedToServer.
type ConnectionInformation struct {
	// PeerSRTVersion is the handshake version the peer negotiated. gosrt only
	// exposes the handshake version (4 or 5), not a dotted library version,
	// so this reads e.g. "5" rather than "1.4.1".
	PeerSRTVersion string

	// NegotiatedLatency is the receiver TSBPD delay, in milliseconds, agreed
	// on with the peer. -1 if unavailable.
	NegotiatedLatency int

	// StreamId is the stream id the caller set on ClientOptions.StreamId,
	// as read back off the accepted or connected socket. Empty if the
	// caller never set one.
	StreamId string
}

// MsgCtrl mirrors the handful of SRT_MSGCTRL fields applications typically
// care about. gosrt's Conn does not expose the message control block on
// Read or Write, so every receive callback gets DefaultMsgCtrl(), and
// SendData accepts a MsgCtrl but does not pass it on to the socket.
type MsgCtrl struct {
	// TTL is the message drop deadline in milliseconds, -1 disables it.
	TTL int32
	// InOrder requests strict message ordering; SRT enforces this in live
	// mode regardless, so this only documents intent.
	InOrder bool
	// MsgNo is the sequence number of the message, when known.
	MsgNo int32
}

// DefaultMsgCtrl returns a MsgCtrl with the same defaults SRT itself uses.
func DefaultMsgCtrl() MsgCtrl {
	return MsgCtrl{TTL: -1, InOrder: false}
}

// Statistics is the accumulated and instantaneous statistics of a
// connection, as reported by the underlying SRT socket.
type Statistics = srt.Statistics
