// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmring

import (
	"fmt"

	ombus "code.hybscloud.com/ombus"
)

// header is a thin, offset-based view over the mapped header page. It holds
// no state of its own beyond the mapping; every accessor reads or writes
// straight through to shared memory.
type header struct{ m *mapping }

func (h header) checkMagic() error {
	if string(h.m.data[offMagic:offMagic+4]) != magic {
		return ombus.NewError(ombus.KindMagicMismatch, 0)
	}
	return nil
}

func (h header) checkVersion() error {
	if h.m.loadU32(offVersion) != version {
		return ombus.NewError(ombus.KindVersionMismatch, 0)
	}
	return nil
}

func (h header) slotSize() uint32     { return h.m.loadU32(offSlotSize) }
func (h header) capacity() uint32     { return h.m.loadU32(offCapacity) }
func (h header) maxConsumers() uint32 { return h.m.loadU32(offMaxConsumers) }
func (h header) flags() Flags         { return Flags(h.m.loadU32(offFlags)) }

func (h header) head() uint64        { return h.m.loadU64(offHead) }
func (h header) setHead(v uint64)    { h.m.storeU64(offHead, v) }
func (h header) minTail() uint64     { return h.m.loadU64(offMinTail) }
func (h header) setMinTail(v uint64) { h.m.storeU64(offMinTail, v) }

func (h header) producerEpoch() uint64     { return h.m.loadU64(offProducerEpoch) }
func (h header) setProducerEpoch(v uint64) { h.m.storeU64(offProducerEpoch, v) }

func (h header) streamName() string {
	raw := h.m.data[offStreamName : offStreamName+maxStreamNameLen+1]
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

func (h header) setStreamName(name string) error {
	if len(name) > maxStreamNameLen {
		return fmt.Errorf("%w: %q", errNameTooLong, name)
	}
	dst := h.m.data[offStreamName : offStreamName+maxStreamNameLen+1]
	clear(dst)
	copy(dst, name)
	return nil
}

// row is a view over one consumer tail table entry.
type row struct {
	m   *mapping
	off int64
}

func (h header) consumerRow(index uint32) row {
	return row{m: h.m, off: headerPageSize + int64(index)*consumerRowSize}
}

func (r row) tail() uint64         { return r.m.loadU64(r.off + rowOffTail) }
func (r row) setTail(v uint64)     { r.m.storeU64(r.off+rowOffTail, v) }
func (r row) lastWALSeq() uint64   { return r.m.loadU64(r.off + rowOffLastWALSeq) }
func (r row) setLastWALSeq(v uint64) { r.m.storeU64(r.off+rowOffLastWALSeq, v) }
func (r row) lastPollNanos() uint64  { return r.m.loadU64(r.off + rowOffLastPollNanos) }
func (r row) setLastPollNanos(v uint64) { r.m.storeU64(r.off+rowOffLastPollNanos, v) }
