// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package record defines the logical record model shared by the SHM ring
// and the TCP broadcast: an immutable (seq, type, payload) tuple, plus the
// gap/reorder sequence classification both transports apply identically.
package record

// WarningType is the reserved record type carrying the TCP slow-consumer
// warning frame (0-length payload). Applications must not use this type
// code for their own records; it shares the type-code namespace by design
// (see SPEC_FULL.md "open questions").
const WarningType uint8 = 0xFE

// Record is an immutable tuple: a monotonically increasing producer-chosen
// sequence number, an opaque application type tag, and the payload bytes.
//
// Payload may alias memory owned by the transport (a mapped SHM slot or a
// client receive buffer) and is only valid until the next Poll call on the
// same endpoint/client, unless the caller copied it out.
type Record struct {
	Seq     uint64
	Type    uint8
	Payload []byte
}

// Classification describes how a delivered record's sequence compared to
// the tracker's expectation.
type Classification uint8

const (
	// ClassOK means the record's sequence matched the expected next value,
	// or this was the first record ever observed.
	ClassOK Classification = iota
	// ClassGap means the sequence exceeded the expected value.
	ClassGap
	// ClassReorder means the sequence was less than the expected value and
	// the tracker is configured to report that as an error.
	ClassReorder
)

// SeqTracker implements the gap/reorder classification described in
// SPEC_FULL.md §4.3 step 5, shared verbatim by the SHM consumer endpoint
// and the TCP client so that a worker observes identical semantics
// regardless of transport.
type SeqTracker struct {
	expected     uint64
	rejectReorder bool
}

// NewSeqTracker creates a tracker. When rejectReorder is true, a delivered
// sequence below the expected value classifies as ClassReorder instead of
// being silently advanced past.
func NewSeqTracker(rejectReorder bool) SeqTracker {
	return SeqTracker{rejectReorder: rejectReorder}
}

// Reset returns the tracker to its initial state (expected_seq = 0, meaning
// "first record, no check").
func (t *SeqTracker) Reset() { t.expected = 0 }

// Expected returns the next sequence number the tracker expects, or 0 if no
// record has been classified yet.
func (t *SeqTracker) Expected() uint64 { return t.expected }

// Classify applies the classification rule to seq and advances the
// tracker's expectation, returning the classification for this delivery.
//
// Per SPEC_FULL.md: expected_seq starts at 0 meaning "no check yet"; a
// reorder never moves expected_seq backward; expected_seq always advances
// to seq+1 on any delivery (gap and clean alike).
func (t *SeqTracker) Classify(seq uint64) Classification {
	var class Classification
	switch {
	case t.expected == 0:
		class = ClassOK
	case seq == t.expected:
		class = ClassOK
	case seq > t.expected:
		class = ClassGap
	default: // seq < t.expected
		if t.rejectReorder {
			class = ClassReorder
		} else {
			class = ClassOK
		}
	}
	// Reorders (reported or silent) never move expected_seq backward; an
	// ok or gap delivery advances it to seq+1.
	if seq >= t.expected {
		t.expected = seq + 1
	}
	return class
}
