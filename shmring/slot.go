// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmring

// slotArray is a view over the ring's slot region: capacity slots of
// slotSize bytes each, starting at base (headerPageSize + maxConsumers*64).
type slotArray struct {
	m        *mapping
	base     int64
	capacity uint64
	mask     uint64
	slotSize int64
}

func newSlotArray(m *mapping, base int64, capacity uint32, slotSize uint32) slotArray {
	return slotArray{
		m:        m,
		base:     base,
		capacity: uint64(capacity),
		mask:     uint64(capacity) - 1,
		slotSize: int64(slotSize),
	}
}

// at returns the slot view for ring position index (index & mask).
func (a slotArray) at(index uint64) slot {
	off := a.base + int64(index&a.mask)*a.slotSize
	return slot{m: a.m, off: off, slotSize: a.slotSize}
}

// slot is a view over one ring slot: a 24-byte header (slot_seq, wal_seq,
// type, reserved, payload_len, crc32) followed by slot_size-24 bytes of
// inline payload.
type slot struct {
	m        *mapping
	off      int64
	slotSize int64
}

// seq performs the acquire load of slot_seq, the publish fence's pair half
// (SPEC_FULL.md §4.2 step 4 / §4.3 step 2).
func (s slot) seq() uint64 { return s.m.loadU64(s.off + slotOffSeq) }

// setSeq performs the release store of slot_seq: the linearization point.
func (s slot) setSeq(v uint64) { s.m.storeU64(s.off+slotOffSeq, v) }

func (s slot) walSeq() uint64     { return s.m.loadU64(s.off + slotOffWALSeq) }
func (s slot) setWALSeq(v uint64) { s.m.storeU64(s.off+slotOffWALSeq, v) }

func (s slot) typ() uint8      { return s.m.data[s.off+slotOffType] }
func (s slot) setType(v uint8) { s.m.data[s.off+slotOffType] = v }

func (s slot) payloadLen() uint16 {
	b := s.m.data[s.off+slotOffPayloadLen : s.off+slotOffPayloadLen+2]
	return uint16(b[0]) | uint16(b[1])<<8
}

func (s slot) setPayloadLen(v uint16) {
	b := s.m.data[s.off+slotOffPayloadLen : s.off+slotOffPayloadLen+2]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func (s slot) crc32() uint32 {
	b := s.m.data[s.off+slotOffCRC32 : s.off+slotOffCRC32+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (s slot) setCRC32(v uint32) {
	b := s.m.data[s.off+slotOffCRC32 : s.off+slotOffCRC32+4]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// payload returns a slice aliasing the slot's inline payload region, sized
// to the slot's declared payload_len. Callers opened in zero-copy mode may
// keep this slice only until the next poll.
func (s slot) payload() []byte {
	n := int(s.payloadLen())
	start := s.off + slotOffPayload
	return s.m.data[start : start+int64(n) : start+int64(n)]
}

// payloadBuf returns the slot's full inline payload region (capacity bytes,
// not yet sized to any payload_len) as a write target for Publish.
func (s slot) payloadBuf() []byte {
	start := s.off + slotOffPayload
	end := s.off + s.slotSize
	return s.m.data[start:end:end]
}

// payloadCap is the maximum payload a slot of this size can hold.
func (s slot) payloadCap() int { return int(s.slotSize) - slotHeaderSize }
