// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmring

import (
	"encoding/binary"
	"os"

	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/crc32c"
)

// Cursor file format (SPEC_FULL.md §4.4): 16 bytes, little-endian:
//
//	magic      uint32  "OMBC"
//	lastWALSeq uint64
//	crc32      uint32  CRC-32C of the lastWALSeq bytes only (not the magic)
const (
	cursorMagic = "OMBC"
	cursorLen   = 16
)

var errCursorTruncated = ombus.NewError(ombus.KindCursorInvalid, 0)

// SaveCursor writes lastWALSeq to path, replacing any existing file. The
// write is not atomic (no rename-from-temp); callers that need crash safety
// across the save itself should write to a staging path and rename.
func SaveCursor(path string, lastWALSeq uint64) error {
	buf := make([]byte, cursorLen)
	copy(buf[0:4], cursorMagic)
	binary.LittleEndian.PutUint64(buf[4:12], lastWALSeq)
	binary.LittleEndian.PutUint32(buf[12:16], crc32c.Checksum(buf[4:12]))
	return os.WriteFile(path, buf, 0644)
}

// LoadCursor reads a cursor file written by SaveCursor. A missing file is
// reported as a plain *os.PathError (the caller's decision whether "no
// cursor yet" means "start from zero"); a present-but-malformed file is
// reported as KindCursorInvalid.
func LoadCursor(path string) (uint64, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if len(buf) != cursorLen {
		return 0, errCursorTruncated
	}
	if string(buf[0:4]) != cursorMagic {
		return 0, ombus.NewError(ombus.KindCursorInvalid, 0)
	}
	lastWALSeq := binary.LittleEndian.Uint64(buf[4:12])
	wantCRC := binary.LittleEndian.Uint32(buf[12:16])
	if !crc32c.Verify(buf[4:12], wantCRC) {
		return 0, ombus.NewError(ombus.KindCursorInvalid, lastWALSeq)
	}
	return lastWALSeq, nil
}
