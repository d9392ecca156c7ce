package srtnet

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildTransportConfigDefaults(t *testing.T) {
	cfg, err := buildTransportConfig(roleListener, 64, 200*time.Millisecond, 25, 0, 5*time.Second, "", "")
	require.NoError(t, err)
	require.True(t, cfg.MessageAPI)
	require.Equal(t, uint32(64), cfg.LossMaxTTL)
	require.Equal(t, 200*time.Millisecond, cfg.Latency)
	require.Equal(t, int64(25), cfg.OverheadBW)
	require.Empty(t, cfg.Passphrase)
}

func TestBuildTransportConfigWithPSK(t *testing.T) {
	cfg, err := buildTransportConfig(roleCaller, 0, 120*time.Millisecond, 25, 0, 5*time.Second, "Th1$_is_4n_0pt10N4L_P$k", "example-stream")
	require.NoError(t, err)
	require.Equal(t, "Th1$_is_4n_0pt10N4L_P$k", cfg.Passphrase)
	require.Equal(t, 16, cfg.PBKeylen)
	require.Equal(t, "example-stream", cfg.StreamId)
}

func TestBuildTransportConfigStreamIdIgnoredForListener(t *testing.T) {
	cfg, err := buildTransportConfig(roleListener, 0, 120*time.Millisecond, 25, 0, 5*time.Second, "", "should-not-appear")
	require.NoError(t, err)
	require.Empty(t, cfg.StreamId)
}

func TestBuildTransportConfigRejectsUndersizedMTU(t *testing.T) {
	_, err := buildTransportConfig(roleListener, 0, 120*time.Millisecond, 25, 40, 5*time.Second, "", "")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConfigurationRejected))
}

func TestConnectTimeoutCapsAtMaximum(t *testing.T) {
	require.Equal(t, maxConnectTimeout, connectTimeout(10*time.Second))
	require.Equal(t, maxConnectTimeout, connectTimeout(0))
	require.Equal(t, 500*time.Millisecond, connectTimeout(500*time.Millisecond))
}

func TestResolveHostPortWildcard(t *testing.T) {
	addr, err := resolveHostPort("", 8009, false)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8009", addr)

	addr, err = resolveHostPort("", 8009, true)
	require.NoError(t, err)
	require.Equal(t, "[::]:8009", addr)
}

func TestResolveHostPortIPv4Literal(t *testing.T) {
	addr, err := resolveHostPort("127.0.0.1", 9000, false)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", addr)
}

func TestResolveHostPortLoopbackName(t *testing.T) {
	addr, err := resolveHostPort("localhost", 9001, false)
	require.NoError(t, err)
	require.NotEmpty(t, addr)
}
