// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package seqspin holds the lock-free queue primitive adapted from the
// teacher (code.hybscloud.com/lfq) for ombus's own in-process hand-off
// points — e.g. cmd/ombus's "produce --replay-file" mode, where a file
// -reading goroutine decodes a replayed WAL ahead of the publish cadence and
// hands records to the main loop's Stream.Publish call through this queue.
// This is an in-process-only structure (no cross-process shared memory
// involved, unlike shmring), so it uses code.hybscloud.com/atomix exactly as
// the teacher does.
package seqspin

import (
	"code.hybscloud.com/atomix"
	ombus "code.hybscloud.com/ombus"
)

// pad is cache line padding to prevent false sharing between the
// producer-owned and consumer-owned fields below.
type pad [64]byte

// roundToPow2 rounds n up to the next power of 2 (minimum 2).
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// SPSC is a single-producer single-consumer bounded queue, based on
// Lamport's ring buffer with cached-index optimization: the producer caches
// the consumer's dequeue index and vice versa, reducing cross-core
// cache-line traffic. Grounded on the teacher's lfq.SPSC[T], generalized
// from a standalone library type to an internal hand-off queue between a
// file-replay reader goroutine and the publishing loop that consumes it.
type SPSC[T any] struct {
	_          pad
	head       atomix.Uint64 // consumer reads from here
	_          pad
	cachedTail uint64 // consumer's cached view of tail
	_          pad
	tail       atomix.Uint64 // producer writes here
	_          pad
	cachedHead uint64 // producer's cached view of head
	_          pad
	buffer     []T
	mask       uint64
}

// NewSPSC creates a queue whose capacity rounds up to the next power of 2.
func NewSPSC[T any](capacity int) *SPSC[T] {
	n := uint64(roundToPow2(capacity))
	return &SPSC[T]{
		buffer: make([]T, n),
		mask:   n - 1,
	}
}

// Enqueue adds an element (producer only). Returns ombus.ErrWouldBlock if
// the queue is full.
func (q *SPSC[T]) Enqueue(elem T) error {
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead > q.mask {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead > q.mask {
			return ombus.ErrWouldBlock
		}
	}
	q.buffer[tail&q.mask] = elem
	q.tail.StoreRelease(tail + 1)
	return nil
}

// Dequeue removes and returns an element (consumer only). Returns
// ombus.ErrWouldBlock if the queue is empty.
func (q *SPSC[T]) Dequeue() (T, error) {
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			var zero T
			return zero, ombus.ErrWouldBlock
		}
	}
	elem := q.buffer[head&q.mask]
	var zero T
	q.buffer[head&q.mask] = zero
	q.head.StoreRelease(head + 1)
	return elem, nil
}

// Len returns a point-in-time estimate of the number of queued elements.
func (q *SPSC[T]) Len() int {
	return int(q.tail.LoadAcquire() - q.head.LoadAcquire())
}

// Cap returns the queue's capacity.
func (q *SPSC[T]) Cap() int { return int(q.mask) + 1 }
