// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tcpclient implements the TCP broadcast consumer (C6, spec.md
// §4.5): connect, reassemble framed records off a non-blocking socket with
// a want-header/want-payload state machine, and track sequence
// classification identically to shmring's endpoint. AutoReconnect (in
// autoreconnect.go) layers exponential-backoff reconnection on top.
package tcpclient

import (
	"errors"
	"io"
	"net"
	"strconv"

	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/record"
	"code.hybscloud.com/ombus/wire"
)

type frameState uint8

const (
	wantHeader frameState = iota
	wantPayload
)

// Client is a single TCP connection to an ombus broadcast server. Poll is
// not reentrant: only one goroutine may call it on a given Client.
type Client struct {
	conn  *net.TCPConn
	buf   *recvBuf
	state frameState
	hdr   wire.Header

	draining bool
	closed   bool

	tracker    record.SeqTracker
	lastWALSeq uint64
}

// Connect performs a blocking connect, disables Nagle, and allocates the
// receive buffer (spec.md §4.5).
func Connect(host string, port int, cfg Config) (*Client, error) {
	cfg.applyDefaults()
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, cfg.DialTimeout)
	if err != nil {
		return nil, ombus.WrapError(ombus.KindTCPConnect, 0, err)
	}
	tcpConn := conn.(*net.TCPConn)
	if err := tcpConn.SetNoDelay(true); err != nil {
		tcpConn.Close()
		return nil, ombus.WrapError(ombus.KindTCPConnect, 0, err)
	}
	return &Client{
		conn:    tcpConn,
		buf:     newRecvBuf(cfg.RecvBufSize),
		tracker: record.NewSeqTracker(cfg.RejectReorder),
	}, nil
}

// LastWALSeq returns the wal_seq of the most recently delivered record (or
// slow-warning). It stays readable after Close, which AutoReconnect uses to
// carry the last sequence across a reconnect; a Client made by Connect
// starts at 0.
func (c *Client) LastWALSeq() uint64 { return c.lastWALSeq }

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.closed = true
	return c.conn.Close()
}

// Poll attempts to deliver the next record (spec.md §4.5 steps 1-3). It
// returns ombus.ErrWouldBlock when nothing is ready yet, KindTCPDisconnected
// once the peer has closed and every buffered frame has been drained, and
// KindTCPProtocol on a bad magic.
func (c *Client) Poll(rec *record.Record) error {
	if c.closed {
		return ombus.NewError(ombus.KindTCPDisconnected, c.lastWALSeq)
	}

	if ok, err := c.tryDeliver(rec); ok {
		return err
	}

	if !c.draining {
		n, err := c.readMore()
		switch {
		case errors.Is(err, io.EOF):
			c.draining = true
		case err != nil:
			c.closed = true
			return ombus.WrapError(ombus.KindTCPRecv, c.lastWALSeq, err)
		case n == 0:
			return ombus.ErrWouldBlock
		}
	}

	if ok, err := c.tryDeliver(rec); ok {
		return err
	}
	if c.draining {
		c.closed = true
		return ombus.NewError(ombus.KindTCPDisconnected, c.lastWALSeq)
	}
	return ombus.ErrWouldBlock
}

// readMore issues one non-blocking read into the buffer's writable tail.
// A timeout (no data ready) is reported as (0, nil); io.EOF and real
// errors are returned as-is for the caller to classify.
func (c *Client) readMore() (int, error) {
	p := c.buf.writableTail()
	if len(p) == 0 {
		return 0, ombus.NewError(ombus.KindTCPProtocol, c.lastWALSeq)
	}
	if err := c.conn.SetReadDeadline(immediateDeadline()); err != nil {
		return 0, err
	}
	n, err := c.conn.Read(p)
	c.buf.commitWrite(n)
	if err != nil {
		if isTimeout(err) {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// tryDeliver advances the framing state machine as far as currently
// buffered bytes allow. ok is true when it produced a result (a delivered
// record, a slow-warning, or a protocol error) for Poll to return.
func (c *Client) tryDeliver(rec *record.Record) (ok bool, err error) {
	if c.state == wantHeader {
		if c.buf.available() < wire.HeaderLen {
			return false, nil
		}
		hdr, good := wire.Decode(c.buf.peek(wire.HeaderLen))
		if !good {
			c.closed = true
			return true, ombus.NewError(ombus.KindTCPProtocol, c.lastWALSeq)
		}
		c.buf.consume(wire.HeaderLen)
		c.hdr = hdr
		c.state = wantPayload
	}

	if c.buf.available() < int(c.hdr.PayloadLen) {
		return false, nil
	}
	payload := c.buf.peek(int(c.hdr.PayloadLen))
	c.buf.consume(int(c.hdr.PayloadLen))
	c.state = wantHeader

	if c.hdr.IsWarning() {
		c.lastWALSeq = c.hdr.Seq
		return true, ombus.NewError(ombus.KindSlowWarning, c.hdr.Seq)
	}

	rec.Seq = c.hdr.Seq
	rec.Type = c.hdr.Type
	rec.Payload = payload
	class := c.tracker.Classify(c.hdr.Seq)
	c.lastWALSeq = c.hdr.Seq

	switch class {
	case record.ClassGap:
		return true, ombus.NewError(ombus.KindGap, c.hdr.Seq)
	case record.ClassReorder:
		return true, ombus.NewError(ombus.KindReorder, c.hdr.Seq)
	default:
		return true, nil
	}
}
