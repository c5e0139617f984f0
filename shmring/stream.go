// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmring

import (
	"fmt"
	"runtime"
	"time"

	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/crc32c"
	"code.hybscloud.com/ombus/record"
	"code.hybscloud.com/spin"
	"github.com/agilira/go-timecache"
)

// clock is a cached monotonic clock shared by every stream and endpoint in
// the process: the producer's live-tail scan and a consumer's
// last_poll_nanos stamps read it on every hot-path call (producer_epoch is
// a generation counter and does not use it). A microsecond resolution keeps the cache
// refresh cheap relative to a raw time.Now() syscall while staying far
// finer than the staleness thresholds operators configure (seconds).
// Grounded on agilira-lethe's identical use of go-timecache for its
// rotation-deadline bookkeeping.
var clock = timecache.NewWithResolution(time.Microsecond)

func nowNanos() int64 { return clock.CachedTime().UnixNano() }

// Stream is the producer side of an SHM ring (SPEC_FULL.md §4.2). A stream
// is owned by exactly one process/goroutine: Publish is not reentrant.
type Stream struct {
	m        *mapping
	hdr      header
	slots    slotArray
	name     string
	capacity uint32
	slotSize uint32
	maxCons  uint32
	flags    Flags
	staleNs  uint64
	bp       BackpressureFunc
	bpCtx    any

	published uint64 // process-local count, not shared
}

// Create truncates/initializes a new SHM stream and returns its producer
// handle. See Config for defaults.
func Create(cfg Config) (*Stream, error) {
	cfg.applyDefaults()
	if !isPow2(cfg.Capacity) {
		return nil, errNotPow2
	}
	if cfg.SlotSize < minSlotSize {
		return nil, errSlotTooSmall
	}
	if cfg.MaxConsumers == 0 {
		return nil, errNoConsumers
	}
	if len(cfg.StreamName) > maxStreamNameLen {
		return nil, fmt.Errorf("%w: %q", errNameTooLong, cfg.StreamName)
	}

	size := fileSize(cfg.Capacity, cfg.SlotSize, cfg.MaxConsumers)
	m, err := createMapping(cfg.StreamName, size)
	if err != nil {
		return nil, err
	}

	hdr := header{m: m}
	// producer_epoch is a generation counter, not a timestamp: reading
	// whatever the previous generation left behind (0 on a brand new file)
	// and incrementing it is immune to clock resolution, unlike stamping
	// from nowNanos() which a fast back-to-back restart could tie.
	prevEpoch := hdr.producerEpoch()
	copy(m.data[offMagic:offMagic+4], magic)
	m.storeU32(offVersion, version)
	m.storeU32(offSlotSize, cfg.SlotSize)
	m.storeU32(offCapacity, cfg.Capacity)
	m.storeU32(offMaxConsumers, cfg.MaxConsumers)
	m.storeU32(offFlags, uint32(cfg.Flags))
	if err := hdr.setStreamName(cfg.StreamName); err != nil {
		m.close()
		return nil, err
	}
	hdr.setHead(0)
	hdr.setMinTail(0)
	hdr.setProducerEpoch(prevEpoch + 1)

	base := slotsOffset(cfg.MaxConsumers)
	slots := newSlotArray(m, base, cfg.Capacity, cfg.SlotSize)
	for i := uint64(0); i < uint64(cfg.Capacity); i++ {
		slots.at(i).setSeq(i)
	}
	for i := uint32(0); i < cfg.MaxConsumers; i++ {
		row := hdr.consumerRow(i)
		row.setTail(0)
		row.setLastWALSeq(0)
		row.setLastPollNanos(0)
	}

	return &Stream{
		m: m, hdr: hdr, slots: slots,
		name: cfg.StreamName, capacity: cfg.Capacity, slotSize: cfg.SlotSize,
		maxCons: cfg.MaxConsumers, flags: cfg.Flags, staleNs: cfg.StalenessNanos,
		bp: cfg.Backpressure, bpCtx: cfg.BackpressureCtx,
	}, nil
}

// Publish writes one record (SPEC_FULL.md §4.2). It is not reentrant: only
// one goroutine may call Publish/PublishBatch/Destroy on a given Stream.
func (s *Stream) Publish(seq uint64, typ uint8, payload []byte) error {
	if len(payload) > int(s.slotSize)-slotHeaderSize {
		return ombus.NewError(ombus.KindRecordTooLarge, seq)
	}

	head := s.hdr.head()
	s.awaitCapacity(head)

	sl := s.slots.at(head)
	copy(sl.payloadBuf(), payload)
	sl.setWALSeq(seq)
	sl.setType(typ)
	sl.setPayloadLen(uint16(len(payload)))
	if s.flags&FlagCRC != 0 {
		sl.setCRC32(crc32c.Checksum(payload))
	}

	// Publish fence: the linearization point. Everything above must be
	// visible to any consumer that observes this store.
	sl.setSeq(head + 1)
	s.hdr.setHead(head + 1)
	s.published++
	return nil
}

// PublishBatch writes records in order, amortizing the head store: each
// slot gets its own release store of slot_seq, and head advances once at
// the end (SPEC_FULL.md §4.2 "Publish batch").
func (s *Stream) PublishBatch(records []record.Record) error {
	for _, r := range records {
		if len(r.Payload) > int(s.slotSize)-slotHeaderSize {
			return ombus.NewError(ombus.KindRecordTooLarge, r.Seq)
		}
	}
	head := s.hdr.head()
	for _, r := range records {
		s.awaitCapacity(head)
		sl := s.slots.at(head)
		copy(sl.payloadBuf(), r.Payload)
		sl.setWALSeq(r.Seq)
		sl.setType(r.Type)
		sl.setPayloadLen(uint16(len(r.Payload)))
		if s.flags&FlagCRC != 0 {
			sl.setCRC32(crc32c.Checksum(r.Payload))
		}
		sl.setSeq(head + 1)
		head++
	}
	s.hdr.setHead(head)
	s.published += uint64(len(records))
	return nil
}

// awaitCapacity blocks (spin-then-yield) until head-min_tail < capacity,
// implementing the three-phase backpressure loop of SPEC_FULL.md §4.2 step 2.
func (s *Stream) awaitCapacity(head uint64) {
	if head-s.hdr.minTail() < uint64(s.capacity) {
		return
	}
	sw := spin.Wait{}
	spins := 0
	bpFired := false
	for head-s.hdr.minTail() >= uint64(s.capacity) {
		switch {
		case spins < 10: // phase 1
			sw.Once()
		case spins < 42: // phase 2
			sw.Once()
			if spins%32 == 0 {
				s.hdr.setMinTail(s.scanMinTail())
			}
		default: // phase 3
			if !bpFired {
				if s.bp != nil {
					s.bp(s.bpCtx)
				}
				bpFired = true
			}
			runtime.Gosched()
			if spins%32 == 0 {
				s.hdr.setMinTail(s.scanMinTail())
			}
		}
		spins++
	}
}

// scanMinTail recomputes min_tail by scanning the consumer table, applying
// the live-tail rule of SPEC_FULL.md §4.2: a consumer whose last_poll_nanos
// is zero (never polled) or older than StalenessNanos is skipped. If every
// consumer is stale, progress is allowed (min = head).
func (s *Stream) scanMinTail() uint64 {
	head := s.hdr.head()
	min := head
	any := false
	now := uint64(nowNanos())
	for i := uint32(0); i < s.maxCons; i++ {
		row := s.hdr.consumerRow(i)
		lp := row.lastPollNanos()
		if s.staleNs != 0 {
			if lp == 0 || now-lp > s.staleNs {
				continue
			}
		}
		t := row.tail()
		if !any || t < min {
			min = t
			any = true
		}
	}
	if !any {
		return head
	}
	return min
}

// Destroy unmaps the stream and unlinks its SHM name. Pending consumers
// detect this through their epoch snapshot at the next poll.
func (s *Stream) Destroy() error {
	name := s.name
	// A later Create on this name gets a fresh inode, so bump the epoch in
	// this one for the endpoints still mapping it.
	s.hdr.setProducerEpoch(s.hdr.producerEpoch() + 1)
	if err := s.m.close(); err != nil {
		return err
	}
	return unlinkStream(name)
}

// Name returns the stream's name.
func (s *Stream) Name() string { return s.name }

// Published returns the number of records this handle has published.
func (s *Stream) Published() uint64 { return s.published }
