// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmring

import (
	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/crc32c"
	"code.hybscloud.com/ombus/record"
)

// Endpoint is one consumer's view of a stream (SPEC_FULL.md §4.3). An
// Endpoint is owned by exactly one goroutine: Poll is not reentrant.
type Endpoint struct {
	m        *mapping
	hdr      header
	slots    slotArray
	row      row
	index    uint32
	capacity uint32
	slotSize uint32
	flags    Flags
	epoch    uint64
	zeroCopy bool
	copyBuf  []byte

	tail    uint64
	tracker record.SeqTracker
}

// Open maps an existing stream read-write and returns a consumer handle
// bound to consumerIndex. Each consumer index may be opened by only one
// Endpoint at a time; the caller is responsible for that invariant (the
// header has no per-row lock, matching SPEC_FULL.md's single-owner design).
func Open(name string, consumerIndex uint32, opts EndpointOptions) (*Endpoint, error) {
	m, err := openMapping(name)
	if err != nil {
		return nil, err
	}
	hdr := header{m: m}
	if err := hdr.checkMagic(); err != nil {
		m.close()
		return nil, err
	}
	if err := hdr.checkVersion(); err != nil {
		m.close()
		return nil, err
	}
	maxCons := hdr.maxConsumers()
	if consumerIndex >= maxCons {
		m.close()
		return nil, ombus.NewError(ombus.KindConsumerIndexInvalid, uint64(consumerIndex))
	}

	capacity := hdr.capacity()
	slotSize := hdr.slotSize()
	flags := hdr.flags()
	base := slotsOffset(maxCons)
	slots := newSlotArray(m, base, capacity, slotSize)
	r := hdr.consumerRow(consumerIndex)

	e := &Endpoint{
		m: m, hdr: hdr, slots: slots, row: r,
		index: consumerIndex, capacity: capacity, slotSize: slotSize, flags: flags,
		epoch: hdr.producerEpoch(),
		zeroCopy: opts.ZeroCopy,
		tail:    r.tail(),
		tracker: record.NewSeqTracker(flags&FlagRejectReorder != 0),
	}
	if !e.zeroCopy {
		e.copyBuf = make([]byte, int(slotSize)-slotHeaderSize)
	}
	r.setLastPollNanos(uint64(nowNanos()))
	return e, nil
}

// Poll attempts to deliver the next record into rec. It returns
// ErrWouldBlock if the producer has not published past the endpoint's tail.
//
// On success rec.Payload aliases the mapped slot (zero-copy mode) or the
// endpoint's private copy buffer (default), valid only until the next Poll.
func (e *Endpoint) Poll(rec *record.Record) error {
	return e.poll(rec, e.zeroCopy)
}

// poll is Poll's implementation, parameterized on whether the caller wants
// the delivered payload copied into the endpoint's single reusable copyBuf
// or handed back aliasing the mapped slot directly. PollBatch always passes
// zeroCopy=true: copyBuf has room for exactly one payload, so reusing it
// across the records of a single batch would make every returned Payload
// alias the same backing array and end up holding only the last record's
// bytes (SPEC_FULL.md §9: the batch path is always zero-copy, regardless of
// how the endpoint was opened).
func (e *Endpoint) poll(rec *record.Record, zeroCopy bool) error {
	if cur := e.hdr.producerEpoch(); cur != e.epoch {
		return ombus.NewError(ombus.KindEpochChanged, e.tail)
	}

	sl := e.slots.at(e.tail)
	// Acquire load: the publish fence's pair half (SPEC_FULL.md §4.3 step 2).
	seq := sl.seq()
	if seq != e.tail+1 {
		e.row.setLastPollNanos(uint64(nowNanos()))
		return ombus.ErrWouldBlock
	}

	walSeq := sl.walSeq()
	typ := sl.typ()
	payload := sl.payload()
	if e.flags&FlagCRC != 0 {
		if !crc32c.Verify(payload, sl.crc32()) {
			return ombus.NewError(ombus.KindCRCMismatch, walSeq)
		}
	}

	if zeroCopy {
		rec.Payload = payload
	} else {
		rec.Payload = append(e.copyBuf[:0], payload...)
	}
	rec.Seq = walSeq
	rec.Type = typ

	class := e.tracker.Classify(walSeq)

	e.tail++
	e.row.setTail(e.tail)
	e.row.setLastWALSeq(walSeq)
	e.row.setLastPollNanos(uint64(nowNanos()))

	switch class {
	case record.ClassGap:
		return ombus.NewError(ombus.KindGap, walSeq)
	case record.ClassReorder:
		return ombus.NewError(ombus.KindReorder, walSeq)
	default:
		return nil
	}
}

// PollBatch delivers up to len(buf) records (bounded additionally by max),
// returning the count delivered. Gap and reorder classifications do not
// stop the batch. It stops at the first other error (ErrWouldBlock once the
// ring is drained, or a fatal error such as a CRC mismatch, whose record is
// not delivered): if records were already written into buf it returns their
// count with a nil error, and the next call observes the stopping condition
// again; otherwise it returns 0 and that error.
//
// Unlike Poll, PollBatch always hands back payloads aliasing the mapped
// slots directly, even when the endpoint was opened in copy mode: each
// delivered record needs its own backing memory for the duration of the
// batch, and the endpoint's single reusable copyBuf can only hold one.
func (e *Endpoint) PollBatch(buf []record.Record, max int) (int, error) {
	n := len(buf)
	if max < n {
		n = max
	}
	count := 0
	for count < n {
		if err := e.poll(&buf[count], true); err != nil {
			if ombus.Recoverable(err) && !ombus.IsWouldBlock(err) {
				// Gap/reorder: the record was still delivered into buf[count].
				count++
				continue
			}
			if count > 0 {
				return count, nil
			}
			return 0, err
		}
		count++
	}
	return count, nil
}

// Tail returns the endpoint's current tail (the sequence position of the
// next record it expects to poll).
func (e *Endpoint) Tail() uint64 { return e.tail }

// LastWALSeq returns the wal_seq of the most recently delivered record.
func (e *Endpoint) LastWALSeq() uint64 { return e.row.lastWALSeq() }

// Close unmaps the endpoint's view of the stream. It does not affect other
// endpoints or the producer.
func (e *Endpoint) Close() error { return e.m.close() }
