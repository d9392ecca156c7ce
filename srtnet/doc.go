// Package srtnet is a thin façade over the SRT (Secure Reliable Transport)
// protocol for exchanging discrete application messages between a listener
// and one or many callers.
//
// It covers the connection lifecycle only: standing up a server (single- or
// multi-client) or a reconnecting client, dispatching per-connection
// callbacks as sockets become readable or break, and tearing everything down
// cleanly on Stop. Congestion control, ARQ, and the handshake itself are the
// concern of github.com/datarhei/gosrt; framing and retry policy above a
// single message are left to the caller.
package srtnet
