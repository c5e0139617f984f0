// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpserver_test

import (
	"net"
	"testing"
	"time"

	"code.hybscloud.com/ombus/tcpserver"
	"code.hybscloud.com/ombus/wire"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, addr net.Addr) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBroadcastRoundTrip(t *testing.T) {
	s, err := tcpserver.Create(tcpserver.Config{BindAddr: "127.0.0.1"}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Destroy(false) })

	conn := dial(t, s.Addr())
	require.NoError(t, s.PollIO()) // accept the pending connection

	require.NoError(t, s.Broadcast(1, 5, []byte("hello")))
	require.NoError(t, s.PollIO()) // flush to the socket

	buf := make([]byte, wire.HeaderLen+5)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = readFull(conn, buf)
	require.NoError(t, err)

	hdr, ok := wire.Decode(buf[:wire.HeaderLen])
	require.True(t, ok)
	require.Equal(t, uint8(5), hdr.Type)
	require.Equal(t, uint64(1), hdr.Seq)
	require.Equal(t, "hello", string(buf[wire.HeaderLen:]))
}

func TestSlowClientDrop(t *testing.T) {
	s, err := tcpserver.Create(tcpserver.Config{BindAddr: "127.0.0.1", SendBufSize: 64}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Destroy(false) })

	_ = dial(t, s.Addr()) // never read from this connection
	require.NoError(t, s.PollIO())

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, s.Broadcast(i, 0, make([]byte, 32)))
	}
	require.NoError(t, s.PollIO())

	require.GreaterOrEqual(t, s.Stats().SlowClientDrops(), uint64(1))
	require.Equal(t, int64(0), s.Stats().ConnectedClients())
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
