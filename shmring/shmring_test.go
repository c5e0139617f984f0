// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmring_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/record"
	"code.hybscloud.com/ombus/shmring"
	"github.com/stretchr/testify/require"
)

func testStreamName(t *testing.T) string {
	t.Helper()
	name := fmt.Sprintf("/ombus-test-%d", os.Getpid())
	t.Cleanup(func() { _ = os.Remove("/dev/shm/" + name[1:]) })
	return name
}

func newTestStream(t *testing.T, cfg shmring.Config) *shmring.Stream {
	t.Helper()
	cfg.StreamName = testStreamName(t)
	s, err := shmring.Create(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Destroy() })
	return s
}

// TestPublishPollRoundTrip covers spec.md §8's basic roundtrip scenario: a
// record published by the stream is delivered to a freshly opened endpoint
// with its sequence, type, and payload intact.
func TestPublishPollRoundTrip(t *testing.T) {
	s := newTestStream(t, shmring.Config{Capacity: 16, SlotSize: 128, MaxConsumers: 2, Flags: shmring.FlagCRC})

	require.NoError(t, s.Publish(1, 7, []byte("hello")))

	ep, err := shmring.Open(s.Name(), 0, shmring.EndpointOptions{})
	require.NoError(t, err)
	defer ep.Close()

	var rec record.Record
	require.NoError(t, ep.Poll(&rec))
	require.Equal(t, uint64(1), rec.Seq)
	require.Equal(t, uint8(7), rec.Type)
	require.Equal(t, []byte("hello"), rec.Payload)

	require.ErrorIs(t, ep.Poll(&rec), ombus.ErrWouldBlock)
}

// TestPublishBatchPollBatch covers the batched publish/poll path.
func TestPublishBatchPollBatch(t *testing.T) {
	s := newTestStream(t, shmring.Config{Capacity: 16, SlotSize: 128, MaxConsumers: 1})

	batch := []record.Record{
		{Seq: 1, Type: 1, Payload: []byte("a")},
		{Seq: 2, Type: 1, Payload: []byte("bb")},
		{Seq: 3, Type: 1, Payload: []byte("ccc")},
	}
	require.NoError(t, s.PublishBatch(batch))

	ep, err := shmring.Open(s.Name(), 0, shmring.EndpointOptions{})
	require.NoError(t, err)
	defer ep.Close()

	buf := make([]record.Record, 8)
	n, err := ep.PollBatch(buf, 8)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, uint64(1), buf[0].Seq)
	require.Equal(t, uint64(3), buf[2].Seq)
}

// TestGapDetection covers spec.md §8's gap scenario: a consumer whose tail
// was advanced past by the producer (simulated here by publishing with a
// wal_seq that skips ahead) observes KindGap.
func TestGapDetection(t *testing.T) {
	s := newTestStream(t, shmring.Config{Capacity: 16, SlotSize: 128, MaxConsumers: 1})

	require.NoError(t, s.Publish(1, 0, []byte("a")))
	require.NoError(t, s.Publish(5, 0, []byte("b"))) // wal_seq jumps 1 -> 5

	ep, err := shmring.Open(s.Name(), 0, shmring.EndpointOptions{})
	require.NoError(t, err)
	defer ep.Close()

	var rec record.Record
	require.NoError(t, ep.Poll(&rec))
	require.Equal(t, uint64(1), rec.Seq)

	err = ep.Poll(&rec)
	var oerr *ombus.Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, ombus.KindGap, oerr.Kind)
	require.Equal(t, uint64(5), rec.Seq, "the gapped record is still delivered")
}

// TestReorderRejection covers rejection of a sequence below expectation
// when FlagRejectReorder is set.
func TestReorderRejection(t *testing.T) {
	s := newTestStream(t, shmring.Config{Capacity: 16, SlotSize: 128, MaxConsumers: 1, Flags: shmring.FlagRejectReorder})

	require.NoError(t, s.Publish(10, 0, []byte("a")))
	require.NoError(t, s.Publish(3, 0, []byte("b"))) // below expectation (11)

	ep, err := shmring.Open(s.Name(), 0, shmring.EndpointOptions{})
	require.NoError(t, err)
	defer ep.Close()

	var rec record.Record
	require.NoError(t, ep.Poll(&rec))
	require.Equal(t, uint64(10), rec.Seq)

	err = ep.Poll(&rec)
	var oerr *ombus.Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, ombus.KindReorder, oerr.Kind)
}

// TestCRCMismatch covers the CRC-protected path: corrupting a slot's payload
// after publish must surface KindCRCMismatch on poll, not a silent wrong
// delivery.
func TestCRCMismatch(t *testing.T) {
	s := newTestStream(t, shmring.Config{Capacity: 16, SlotSize: 128, MaxConsumers: 1, Flags: shmring.FlagCRC})
	require.NoError(t, s.Publish(1, 0, []byte("hello")))

	// Corrupt the payload in place with a plain file write to the same SHM
	// file, simulating bit rot or a misbehaving writer.
	ep2, err := shmring.Open(s.Name(), 0, shmring.EndpointOptions{})
	require.NoError(t, err)
	defer ep2.Close()

	corruptSlotPayload(t, s.Name())

	var rec record.Record
	err = ep2.Poll(&rec)
	var oerr *ombus.Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, ombus.KindCRCMismatch, oerr.Kind)
}

func corruptSlotPayload(t *testing.T, name string) {
	t.Helper()
	path := filepath.Join("/dev/shm", name[1:])
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f.Close()
	// headerPageSize(4096) + maxConsumers(1)*64 + slot 0's payload start (24).
	_, err = f.WriteAt([]byte{0xFF}, 4096+64+24)
	require.NoError(t, err)
}

// TestEpochChanged covers producer-restart detection: a second Create call
// against the same name re-stamps producer_epoch in the same inode (a
// crashed producer never unlinks), and a consumer holding the old epoch
// snapshot must be told to reopen rather than silently resume mid-stream.
func TestEpochChanged(t *testing.T) {
	name := testStreamName(t)
	cfg := shmring.Config{StreamName: name, Capacity: 16, SlotSize: 128, MaxConsumers: 1}
	s1, err := shmring.Create(cfg)
	require.NoError(t, err)
	require.NoError(t, s1.Publish(1, 0, []byte("a")))

	ep, err := shmring.Open(name, 0, shmring.EndpointOptions{})
	require.NoError(t, err)
	defer ep.Close()

	var rec record.Record
	require.NoError(t, ep.Poll(&rec))

	// s1 is never Destroy()-ed: it "crashes", leaving the SHM file in place.
	s2, err := shmring.Create(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Destroy() })
	require.NoError(t, s2.Publish(1, 0, []byte("b")))

	err = ep.Poll(&rec)
	var oerr *ombus.Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, ombus.KindEpochChanged, oerr.Kind)
}

// TestCursorRoundTrip covers the cursor file format.
func TestCursorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor")

	require.NoError(t, shmring.SaveCursor(path, 42))
	got, err := shmring.LoadCursor(path)
	require.NoError(t, err)
	require.Equal(t, uint64(42), got)
}

// TestCursorInvalidCRC covers a corrupted cursor file being rejected instead
// of silently returning a wrong sequence.
func TestCursorInvalidCRC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor")
	require.NoError(t, shmring.SaveCursor(path, 42))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[4] ^= 0xFF // flip a byte inside last_wal_seq without updating the CRC
	require.NoError(t, os.WriteFile(path, b, 0644))

	_, err = shmring.LoadCursor(path)
	var oerr *ombus.Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, ombus.KindCursorInvalid, oerr.Kind)
}

// TestRingWrap covers correctness across a ring wraparound: publishing more
// records than capacity (with a consumer keeping pace) must not corrupt
// earlier-slot data reused by later sequences.
func TestRingWrap(t *testing.T) {
	s := newTestStream(t, shmring.Config{Capacity: 4, SlotSize: 64, MaxConsumers: 1})
	ep, err := shmring.Open(s.Name(), 0, shmring.EndpointOptions{})
	require.NoError(t, err)
	defer ep.Close()

	const n = 25
	var rec record.Record
	for i := uint64(1); i <= n; i++ {
		require.NoError(t, s.Publish(i, 0, []byte(fmt.Sprintf("v%d", i))))
		require.NoError(t, ep.Poll(&rec))
		require.Equal(t, i, rec.Seq)
		require.Equal(t, fmt.Sprintf("v%d", i), string(rec.Payload))
	}
}

// TestStaleConsumerBypass covers the live-tail staleness rule: a consumer
// row that has never been polled (last_poll_nanos still zero, the state
// every row starts in) must not gate the producer's min_tail computation,
// so publishing past capacity with no endpoint ever opened still succeeds.
func TestStaleConsumerBypass(t *testing.T) {
	s := newTestStream(t, shmring.Config{
		Capacity: 4, SlotSize: 64, MaxConsumers: 2,
		StalenessNanos: 1,
	})

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, s.Publish(i, 0, []byte("x")))
	}
}
