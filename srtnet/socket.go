package srtnet

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	srt "github.com/datarhei/gosrt"
)

// resolveHostPort turns a host (literal IP or name) and port into a dialable
// "ip:port" string. IPv4 literals are used directly; anything else goes
// through the host resolver, and the first address whose family matches
// wantV6 is picked.
func resolveHostPort(host string, port uint16, wantV6 bool) (string, error) {
	if host == "" {
		host = wildcardAddr(wantV6)
	}

	// An IPv4 literal is used as-is, matching the reference's fast path.
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		return net.JoinHostPort(host, strconv.Itoa(int(port))), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrAddressResolutionFailed, host)
	}

	for _, addr := range addrs {
		isV4 := addr.IP.To4() != nil
		if isV4 == !wantV6 {
			return net.JoinHostPort(addr.IP.String(), strconv.Itoa(int(port))), nil
		}
	}

	return "", fmt.Errorf("%w: %s has no address in the requested family", ErrAddressResolutionFailed, host)
}

func wildcardAddr(wantV6 bool) string {
	if wantV6 {
		return "::"
	}
	return "0.0.0.0"
}

// createListener resolves opts.LocalHost/LocalPort and starts a SRT listener
// with the translated configuration.
func createListener(opts ServerOptions) (srt.Listener, srt.Config, error) {
	cfg, err := buildTransportConfig(roleListener, opts.Reorder, opts.Latency, opts.OverheadPercent, opts.MTU, opts.PeerIdleTimeout, opts.PSK, "")
	if err != nil {
		return nil, srt.Config{}, err
	}

	addr, err := resolveHostPort(opts.LocalHost, opts.LocalPort, opts.IPv6Only)
	if err != nil {
		return nil, srt.Config{}, err
	}

	ln, err := srt.Listen("srt", addr, cfg)
	if err != nil {
		return nil, srt.Config{}, fmt.Errorf("%w: %s", ErrListenFailed, err)
	}

	return ln, cfg, nil
}

// createCallerConfig resolves opts.RemoteHost/RemotePort and builds the
// translated configuration for a caller. Binding to a specific local address
// is not something gosrt.Dial exposes; when LocalHost/LocalPort are set we
// still validate they resolve, matching the reference's contract that a bad
// local bind address is a configuration failure, even though we cannot yet
// hand the bound address to gosrt itself.
func createCallerConfig(opts ClientOptions) (string, srt.Config, error) {
	cfg, err := buildTransportConfig(roleCaller, opts.Reorder, opts.Latency, opts.OverheadPercent, opts.MTU, opts.PeerIdleTimeout, opts.PSK, opts.StreamId)
	if err != nil {
		return "", srt.Config{}, err
	}

	cfg.ConnectionTimeout = connectTimeout(opts.PeerIdleTimeout)

	if len(opts.LocalHost) != 0 || opts.LocalPort != 0 {
		if _, err := resolveHostPort(opts.LocalHost, opts.LocalPort, false); err != nil {
			return "", srt.Config{}, err
		}
	}

	addr, err := resolveHostPort(opts.RemoteHost, opts.RemotePort, false)
	if err != nil {
		return "", srt.Config{}, err
	}

	return addr, cfg, nil
}

// boundPort extracts the numeric port from a net.Addr the way
// getLocallyBoundPort needs it.
func boundPort(addr net.Addr) uint16 {
	if addr == nil {
		return 0
	}

	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}

	return uint16(port)
}
