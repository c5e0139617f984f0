// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpserver

import (
	"net"

	"code.hybscloud.com/ombus/wire"
	"github.com/google/uuid"
)

// client is one connected consumer's server-side state. All fields are
// touched only by the server's single I/O goroutine (spec.md §4.3's
// scheduling model); no locks or atomics are needed here.
type client struct {
	id      string
	conn    *net.TCPConn
	out     *outbox
	warned  bool // a slow-consumer warning was already enqueued this episode
	dropped bool // marked for removal at the next PollIO pass
	slow    bool // dropped because its outbox overflowed, not a socket error
}

func newClient(conn *net.TCPConn, sendBufSize int) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		out:  newOutbox(sendBufSize),
	}
}

// enqueueFrame copies a fully encoded frame (header+payload) into the
// client's outbox. It returns false if the frame does not fit.
func (c *client) enqueueFrame(frame []byte) bool {
	if !c.out.fits(len(frame)) {
		return false
	}
	c.out.put(frame)
	c.warned = false
	return true
}

// enqueueWarning best-effort enqueues the reserved slow-consumer warning
// frame (spec.md §4.4: "must not itself block or overflow further; if it
// cannot be enqueued, skip it"). It is only attempted once per overflow
// episode.
func (c *client) enqueueWarning(seq uint64) {
	if c.warned {
		return
	}
	var hdrBuf [wire.HeaderLen]byte
	wire.Header{Type: wire.WarningType, PayloadLen: 0, Seq: seq}.Encode(hdrBuf[:])
	if c.out.fits(wire.HeaderLen) {
		c.out.put(hdrBuf[:])
	}
	c.warned = true
}

// flush writes as much of the outbox as the socket will currently accept,
// using a short write deadline (see immediateDeadline) to emulate a
// non-blocking write without
// platform-specific syscalls (spec.md §4.3: "TCP server ... non-blocking
// sockets"). It returns the number of bytes written.
func (c *client) flush() (int, error) {
	p1, p2 := c.out.readAcquire()
	if len(p1) == 0 {
		return 0, nil
	}
	if err := c.conn.SetWriteDeadline(immediateDeadline()); err != nil {
		return 0, err
	}
	total := 0
	n, err := c.conn.Write(p1)
	total += n
	c.out.readRelease(n)
	if err != nil {
		return total, classifyIOErr(err)
	}
	if n < len(p1) {
		// Short write: the socket buffer is full. Stop here; the rest of
		// p1 (and all of p2) stay queued for the next PollIO pass.
		return total, nil
	}
	if len(p2) > 0 {
		n2, err := c.conn.Write(p2)
		total += n2
		c.out.readRelease(n2)
		if err != nil {
			return total, classifyIOErr(err)
		}
	}
	return total, nil
}
