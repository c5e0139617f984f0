// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire implements the fixed 16-byte little-endian frame header
// shared by the TCP broadcast server and client (SPEC_FULL.md §3).
//
// Unlike a general-purpose variable-length framer (see
// [code.hybscloud.com/framer] for that shape), the ombus wire format never
// needs a multi-byte length prefix scheme: a record's payload length already
// fits a SHM slot (at most 65535 bytes), so the header carries it directly
// as a fixed uint16 field. The package only encodes and decodes headers;
// reading and writing frames, including short reads/writes and
// backpressure, are left to the caller.
package wire

import "encoding/binary"

// HeaderLen is the fixed size of a frame header in bytes.
const HeaderLen = 16

// Magic identifies an ombus TCP frame ("OMTF").
const Magic uint32 = 0x4F4D5446

// WarningType is the reserved record type for the slow-consumer warning
// frame; it always carries a zero-length payload.
const WarningType uint8 = 0xFE

// Header is the in-memory form of a frame header.
type Header struct {
	Type       uint8
	Flags      uint8
	PayloadLen uint16
	Seq        uint64
}

// Encode writes h into buf[:HeaderLen], little-endian, per SPEC_FULL.md §3:
//
//	offset  size  field
//	 0      4     magic
//	 4      1     type
//	 5      1     flags
//	 6      2     payload_len
//	 8      8     wal_seq
func (h Header) Encode(buf []byte) {
	_ = buf[HeaderLen-1] // bounds check hint
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	buf[4] = h.Type
	buf[5] = h.Flags
	binary.LittleEndian.PutUint16(buf[6:8], h.PayloadLen)
	binary.LittleEndian.PutUint64(buf[8:16], h.Seq)
}

// Decode parses buf[:HeaderLen] into a Header. ok is false if the magic
// does not match (a tcp-protocol error at the caller).
func Decode(buf []byte) (h Header, ok bool) {
	_ = buf[HeaderLen-1]
	if binary.LittleEndian.Uint32(buf[0:4]) != Magic {
		return Header{}, false
	}
	h.Type = buf[4]
	h.Flags = buf[5]
	h.PayloadLen = binary.LittleEndian.Uint16(buf[6:8])
	h.Seq = binary.LittleEndian.Uint64(buf[8:16])
	return h, true
}

// IsWarning reports whether h is a slow-consumer warning frame.
func (h Header) IsWarning() bool {
	return h.Type == WarningType && h.PayloadLen == 0
}
