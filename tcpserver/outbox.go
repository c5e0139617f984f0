// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpserver

// outbox is a per-client outbound byte ring (SPEC_FULL.md §3, spec.md §4.4:
// "a bounded byte ring owned by the TCP server; fixed-size at client
// accept"). Its span API (acquire/commit, acquire/release) is grounded on
// jangala-dev/devicecode-go's x/shmring.Ring, adapted from a
// channel-notified SPSC ring shared by two goroutines into a plain
// single-owner ring: the server drives both the write side (Broadcast) and
// the read side (flush) from its one non-blocking I/O thread
// (spec.md §4.3's scheduling model), so the cross-goroutine readiness
// channels and atomics that original design needs have no job here.
type outbox struct {
	buf  []byte
	mask uint32
	rd   uint32
	wr   uint32
}

func newOutbox(capacity int) *outbox {
	n := roundUpPow2(capacity)
	return &outbox{buf: make([]byte, n), mask: uint32(n - 1)}
}

func (o *outbox) size() uint32 { return uint32(len(o.buf)) }

// available returns bytes queued for the socket.
func (o *outbox) available() int { return int(o.wr - o.rd) }

// space returns bytes free for the next write.
func (o *outbox) space() int { return int(o.size() - (o.wr - o.rd)) }

func (o *outbox) reset() { o.rd, o.wr = 0, 0 }

// writeAcquire returns up to two contiguous writable spans. The caller
// must call writeCommit(n) with the number of bytes actually written.
func (o *outbox) writeAcquire() (p1, p2 []byte) {
	space := o.space()
	if space == 0 {
		return nil, nil
	}
	size := o.size()
	idx := o.wr & o.mask
	first := int(size - idx)
	if first > space {
		first = space
	}
	p1 = o.buf[idx : idx+uint32(first)]
	if rem := space - first; rem > 0 {
		p2 = o.buf[:rem]
	}
	return p1, p2
}

func (o *outbox) writeCommit(n int) {
	if n <= 0 {
		return
	}
	o.wr += uint32(n)
}

// readAcquire returns up to two contiguous readable spans. The caller must
// call readRelease(n) with the number of bytes actually consumed.
func (o *outbox) readAcquire() (p1, p2 []byte) {
	avail := o.available()
	if avail == 0 {
		return nil, nil
	}
	size := o.size()
	idx := o.rd & o.mask
	first := int(size - idx)
	if first > avail {
		first = avail
	}
	p1 = o.buf[idx : idx+uint32(first)]
	if rem := avail - first; rem > 0 {
		p2 = o.buf[:rem]
	}
	return p1, p2
}

func (o *outbox) readRelease(n int) {
	if n <= 0 {
		return
	}
	o.rd += uint32(n)
}

// fits reports whether n more bytes can be written without overflowing.
func (o *outbox) fits(n int) bool { return o.space() >= n }

// put copies p into the ring, assuming fits(len(p)) was already checked.
func (o *outbox) put(p []byte) {
	p1, p2 := o.writeAcquire()
	n := copy(p1, p)
	if n < len(p) {
		n += copy(p2, p[n:])
	}
	o.writeCommit(n)
}

func roundUpPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}
