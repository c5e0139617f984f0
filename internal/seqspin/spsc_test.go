// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqspin_test

import (
	"errors"
	"testing"

	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/internal/seqspin"
)

func TestSPSCBasic(t *testing.T) {
	q := seqspin.NewSPSC[int](3)

	if q.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", q.Cap())
	}

	for i := range 4 {
		if err := q.Enqueue(i + 100); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	if err := q.Enqueue(999); !errors.Is(err, ombus.ErrWouldBlock) {
		t.Fatalf("Enqueue on full: got %v, want ErrWouldBlock", err)
	}

	for i := range 4 {
		val, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if val != i+100 {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, val, i+100)
		}
	}

	if _, err := q.Dequeue(); !errors.Is(err, ombus.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}
}

func TestSPSCLen(t *testing.T) {
	q := seqspin.NewSPSC[string](8)
	if q.Len() != 0 {
		t.Fatalf("Len on empty: got %d, want 0", q.Len())
	}
	for i := 0; i < 3; i++ {
		if err := q.Enqueue("x"); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("Len after 3 enqueues: got %d, want 3", q.Len())
	}
	if _, err := q.Dequeue(); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("Len after 1 dequeue: got %d, want 2", q.Len())
	}
}
