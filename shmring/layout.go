// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package shmring implements the SHM ring described in SPEC_FULL.md §3-4.2-4.3:
// a single-producer/multi-consumer event stream backed by a page-aligned
// shared-memory file, with zero-copy delivery and a live-tail backpressure
// scheme.
//
// The ring itself is grounded on the teacher's (code.hybscloud.com/lfq)
// FAA/acquire-release vocabulary and code.hybscloud.com/spin's phased
// spin-then-yield idiom, adapted from a work-distribution queue (each item
// to exactly one consumer) to a broadcast ring (every consumer sees every
// record) in the style of an LMAX Disruptor gating sequence
// (rishavpaul-system-design/order-matching-engine/internal/disruptor). The
// mmap plumbing and on-slot seqlock-style release/acquire fields follow
// AlephTX-aleph-tx/feeder/shm/seqlock.go.
//
// Fields that must be visible across OS process boundaries (header head,
// min_tail, producer_epoch, consumer table rows, slot_seq) are raw memory
// inside the mapped file and are accessed with sync/atomic directly through
// unsafe.Pointer arithmetic, not through code.hybscloud.com/atomix: atomix's
// wrapper types are designed for in-process struct fields and make no
// documented guarantee about being layout-compatible with memory mapped
// from an external file. State that never crosses a process boundary (the
// producer's spin bookkeeping, an endpoint's local sequence tracker) is
// plain Go fields owned by one goroutine; shmring does not import atomix.
package shmring

import "errors"

const (
	// headerPageSize is the fixed size of the SHM header page.
	headerPageSize = 4096

	// magic identifies an ombus SHM stream ("OMBS").
	magic = "OMBS"

	// version is the only supported header format version.
	version uint32 = 1

	// consumerRowSize is the fixed, cache-line-aligned size of one consumer
	// tail table entry.
	consumerRowSize = 64

	// slotHeaderSize is the fixed per-slot header size: slot_seq(8) +
	// wal_seq(8) + type(1) + reserved(1) + payload_len(2) + crc32(4).
	slotHeaderSize = 24

	// minSlotSize is the smallest slot_size that can hold a header and at
	// least one payload byte.
	minSlotSize = slotHeaderSize + 1

	// maxStreamNameLen is the stream name budget inside the header page
	// (63 bytes + a NUL terminator).
	maxStreamNameLen = 63
)

// Header field byte offsets within the header page.
const (
	offMagic        = 0
	offVersion      = 4
	offSlotSize     = 8
	offCapacity     = 12
	offMaxConsumers = 16
	offFlags        = 20
	offHead         = 32 // 8-byte aligned
	offMinTail      = 40
	offProducerEpoch = 48
	offStreamName   = 56
)

// Consumer tail table row byte offsets (relative to the row's start).
const (
	rowOffTail         = 0
	rowOffLastWALSeq   = 8
	rowOffLastPollNanos = 16
)

// Slot header byte offsets (relative to the slot's start).
const (
	slotOffSeq        = 0
	slotOffWALSeq     = 8
	slotOffType       = 16
	slotOffReserved   = 17
	slotOffPayloadLen = 18
	slotOffCRC32      = 20
	slotOffPayload    = slotHeaderSize
)

// Flags are feature bits recognized in the header's flags field and in
// Config.Flags.
type Flags uint32

const (
	// FlagCRC enables CRC-32C coverage of every published payload.
	FlagCRC Flags = 1 << 0
	// FlagRejectReorder makes a consumer classify a sequence below its
	// expectation as reorder-detected instead of silently advancing past it.
	FlagRejectReorder Flags = 1 << 1
)

var (
	errNotPow2       = errors.New("shmring: capacity must be a power of two")
	errSlotTooSmall  = errors.New("shmring: slot_size must be at least 25 bytes")
	errNoConsumers   = errors.New("shmring: max_consumers must be >= 1")
	errNameTooLong   = errors.New("shmring: stream name exceeds 63 bytes")
)

func isPow2(n uint32) bool { return n != 0 && n&(n-1) == 0 }

func slotsOffset(maxConsumers uint32) int64 {
	return headerPageSize + int64(maxConsumers)*consumerRowSize
}

func fileSize(capacity, slotSize, maxConsumers uint32) int64 {
	return slotsOffset(maxConsumers) + int64(capacity)*int64(slotSize)
}
