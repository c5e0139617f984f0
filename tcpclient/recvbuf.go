// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpclient

// recvBuf is the client's fixed-capacity receive buffer, doubling as the
// frame reassembly window (spec.md §4.5): a linear buffer compacted toward
// the front whenever trailing free space runs out, rather than a power-of-2
// ring — frames are always small relative to the configured buffer, so the
// occasional memmove is cheaper than the indexing a ring would need here.
type recvBuf struct {
	data       []byte
	start, end int
}

func newRecvBuf(size int) *recvBuf {
	return &recvBuf{data: make([]byte, size)}
}

func (b *recvBuf) available() int { return b.end - b.start }

func (b *recvBuf) peek(n int) []byte { return b.data[b.start : b.start+n : b.start+n] }

func (b *recvBuf) consume(n int) {
	b.start += n
	if b.start == b.end {
		b.start, b.end = 0, 0
	}
}

func (b *recvBuf) compact() {
	if b.start == 0 {
		return
	}
	n := copy(b.data, b.data[b.start:b.end])
	b.start, b.end = 0, n
}

// writableTail returns the contiguous free space the next Read may fill,
// compacting first if the tail has run out but the buffer isn't full.
func (b *recvBuf) writableTail() []byte {
	if len(b.data)-b.end == 0 {
		b.compact()
	}
	return b.data[b.end:]
}

func (b *recvBuf) commitWrite(n int) { b.end += n }
