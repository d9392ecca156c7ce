package srtnet

import "errors"

// Sentinel errors surfaced internally. The public API never returns them
// directly -- every user-facing operation reports success with a bool -- but
// they are logged and can be matched with errors.Is by anything wrapping
// this package.
var (
	// ErrConfigurationRejected covers a missing required callback, an
	// invalid MTU, an invalid PSK length, or an invalid local address.
	ErrConfigurationRejected = errors.New("srtnet: configuration rejected")

	// ErrAddressResolutionFailed means the host or bind address could not
	// be resolved.
	ErrAddressResolutionFailed = errors.New("srtnet: address resolution failed")

	// ErrListenFailed means the local endpoint could not be bound or put
	// into listening state; gosrt.Listen does not distinguish the two.
	ErrListenFailed = errors.New("srtnet: listen failed")

	// ErrConnectFailed covers an unreachable peer or a rejected handshake,
	// including a pre-shared key mismatch.
	ErrConnectFailed = errors.New("srtnet: connect failed")

	// ErrMessageTooLarge means a send request exceeded the live-mode
	// payload maximum for the current connection.
	ErrMessageTooLarge = errors.New("srtnet: message exceeds payload maximum")

	// ErrSendFailed means the socket was broken or the target unknown.
	ErrSendFailed = errors.New("srtnet: send failed")
)
