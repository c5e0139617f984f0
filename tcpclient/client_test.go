// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpclient_test

import (
	"errors"
	"testing"
	"time"

	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/record"
	"code.hybscloud.com/ombus/tcpclient"
	"code.hybscloud.com/ombus/tcpserver"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *tcpserver.Server {
	t.Helper()
	s, err := tcpserver.Create(tcpserver.Config{BindAddr: "127.0.0.1"}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Destroy(false) })
	return s
}

func pollUntil(t *testing.T, fn func() error, timeout time.Duration) error {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		err := fn()
		if !ombus.IsWouldBlock(err) {
			return err
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Millisecond)
	}
}

func TestClientFramingRoundTrip(t *testing.T) {
	s := newTestServer(t)
	host, port := serverHostPort(t, s)

	c, err := tcpclient.Connect(host, port, tcpclient.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, s.PollIO()) // accept

	require.NoError(t, s.Broadcast(1, 7, []byte("payload-one")))
	require.NoError(t, s.Broadcast(2, 7, []byte("payload-two")))
	require.NoError(t, s.PollIO())

	var rec record.Record
	require.NoError(t, pollUntil(t, func() error { return c.Poll(&rec) }, time.Second))
	require.Equal(t, uint64(1), rec.Seq)
	require.Equal(t, "payload-one", string(rec.Payload))

	require.NoError(t, pollUntil(t, func() error { return c.Poll(&rec) }, time.Second))
	require.Equal(t, uint64(2), rec.Seq)
	require.Equal(t, "payload-two", string(rec.Payload))
	require.Equal(t, uint64(2), c.LastWALSeq())
}

func TestClientGapDetection(t *testing.T) {
	s := newTestServer(t)
	host, port := serverHostPort(t, s)

	c, err := tcpclient.Connect(host, port, tcpclient.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, s.PollIO())

	require.NoError(t, s.Broadcast(1, 0, []byte("a")))
	require.NoError(t, s.Broadcast(5, 0, []byte("b")))
	require.NoError(t, s.PollIO())

	var rec record.Record
	require.NoError(t, pollUntil(t, func() error { return c.Poll(&rec) }, time.Second))
	require.Equal(t, uint64(1), rec.Seq)

	err = pollUntil(t, func() error { return c.Poll(&rec) }, time.Second)
	var oerr *ombus.Error
	require.True(t, errors.As(err, &oerr))
	require.Equal(t, ombus.KindGap, oerr.Kind)
	require.Equal(t, uint64(5), rec.Seq)
}

func TestClientDisconnectOnOrderlyClose(t *testing.T) {
	s := newTestServer(t)
	host, port := serverHostPort(t, s)

	c, err := tcpclient.Connect(host, port, tcpclient.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, s.PollIO())

	require.NoError(t, s.Broadcast(1, 0, []byte("x")))
	require.NoError(t, s.PollIO())

	var rec record.Record
	require.NoError(t, pollUntil(t, func() error { return c.Poll(&rec) }, time.Second))

	require.NoError(t, s.Destroy(true))

	err = pollUntil(t, func() error { return c.Poll(&rec) }, time.Second)
	var oerr *ombus.Error
	require.True(t, errors.As(err, &oerr))
	require.Equal(t, ombus.KindTCPDisconnected, oerr.Kind)
}

func TestClientSlowWarningSurfaced(t *testing.T) {
	s, err := tcpserver.Create(tcpserver.Config{BindAddr: "127.0.0.1", SendBufSize: 64}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Destroy(false) })
	host, port := serverHostPort(t, s)

	c, err := tcpclient.Connect(host, port, tcpclient.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, s.PollIO())

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, s.Broadcast(i, 0, make([]byte, 32)))
	}
	require.NoError(t, s.PollIO())

	var rec record.Record
	var lastErr error
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		lastErr = c.Poll(&rec)
		var oerr *ombus.Error
		if errors.As(lastErr, &oerr) && oerr.Kind == ombus.KindSlowWarning {
			return
		}
		if lastErr == nil {
			continue
		}
		if !ombus.IsWouldBlock(lastErr) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected a slow-warning frame, last error: %v", lastErr)
}
