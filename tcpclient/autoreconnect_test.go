// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpclient_test

import (
	"net"
	"testing"
	"time"

	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/record"
	"code.hybscloud.com/ombus/tcpclient"
	"code.hybscloud.com/ombus/tcpserver"
	"github.com/stretchr/testify/require"
)

func serverHostPort(t *testing.T, s *tcpserver.Server) (string, int) {
	t.Helper()
	tcpAddr, ok := s.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return tcpAddr.IP.String(), tcpAddr.Port
}

// TestAutoReconnectResume mirrors spec.md §8 scenario 6: broadcast 1..5,
// destroy the server mid-stream, confirm the client reports would-block
// through the outage instead of a permanent failure, bring up a fresh
// server on the same address, and confirm the auto-reconnecting client
// resumes and delivers 6..10.
func TestAutoReconnectResume(t *testing.T) {
	s := newTestServer(t)
	host, port := serverHostPort(t, s)

	ar, err := tcpclient.NewAutoReconnect(tcpclient.AutoReconnectConfig{
		Host:           host,
		Port:           port,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ar.Close() })

	require.NoError(t, s.PollIO())
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, s.Broadcast(i, 0, []byte("x")))
	}
	require.NoError(t, s.PollIO())

	var rec record.Record
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, pollUntil(t, func() error { return ar.Poll(&rec) }, time.Second))
		require.Equal(t, i, rec.Seq)
	}
	require.Equal(t, uint64(5), ar.LastWALSeq())

	require.NoError(t, s.Destroy(false))

	// During the outage, Poll must surface would-block, not a permanent
	// failure — MaxRetries is unbounded (0) in this config.
	for i := 0; i < 3; i++ {
		err := ar.Poll(&rec)
		require.True(t, ombus.IsWouldBlock(err), "got %v", err)
		time.Sleep(5 * time.Millisecond)
	}

	s2, err := tcpserver.Create(tcpserver.Config{BindAddr: host, Port: port}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Destroy(false) })

	require.Eventually(t, func() bool {
		_ = ar.Poll(&rec)
		_ = s2.PollIO() // accept the reconnecting client
		return s2.Stats().ConnectedClients() > 0
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, s2.PollIO())

	for i := uint64(6); i <= 10; i++ {
		require.NoError(t, s2.Broadcast(i, 0, []byte("y")))
	}
	require.NoError(t, s2.PollIO())

	for i := uint64(6); i <= 10; i++ {
		require.NoError(t, pollUntil(t, func() error { return ar.Poll(&rec) }, time.Second))
		require.Equal(t, i, rec.Seq)
	}
	require.Equal(t, uint64(10), ar.LastWALSeq())
}
