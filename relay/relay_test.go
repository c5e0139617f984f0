// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay_test

import (
	"testing"

	"code.hybscloud.com/atomix"
	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/record"
	"code.hybscloud.com/ombus/relay"
	"github.com/stretchr/testify/require"
)

// fakeEndpoint serves batches from a preloaded queue of fixed sizes, then
// signals the stop flag so Run returns deterministically in tests.
type fakeEndpoint struct {
	batches [][]record.Record
	i       int
	onDone  func()
}

func (f *fakeEndpoint) PollBatch(buf []record.Record, max int) (int, error) {
	if f.i >= len(f.batches) {
		if f.onDone != nil {
			f.onDone()
		}
		return 0, ombus.ErrWouldBlock
	}
	b := f.batches[f.i]
	f.i++
	n := len(b)
	if max < n {
		n = max
	}
	copy(buf, b[:n])
	return n, nil
}

type fakeServer struct {
	broadcasts [][]record.Record
	polls      int
}

func (f *fakeServer) BroadcastBatch(records []record.Record) error {
	cp := make([]record.Record, len(records))
	copy(cp, records)
	f.broadcasts = append(f.broadcasts, cp)
	return nil
}

func (f *fakeServer) PollIO() error {
	f.polls++
	return nil
}

func records(seqs ...uint64) []record.Record {
	out := make([]record.Record, len(seqs))
	for i, s := range seqs {
		out[i] = record.Record{Seq: s, Type: 1, Payload: []byte("x")}
	}
	return out
}

func TestRelayForwardsBatches(t *testing.T) {
	ep := &fakeEndpoint{batches: [][]record.Record{records(1, 2, 3)}}
	srv := &fakeServer{}
	var stop atomix.Bool
	ep.onDone = func() { stop.StoreRelease(true) }

	r := relay.New(ep, srv, relay.Config{PollIntervalUs: 1}, &stop, nil)
	require.NoError(t, r.Run())

	require.Len(t, srv.broadcasts, 1)
	require.Len(t, srv.broadcasts[0], 3)
	require.Equal(t, uint64(2), srv.broadcasts[0][1].Seq)
}

func TestRelayStopsOnFatalEndpointError(t *testing.T) {
	ep := &fatalEndpoint{}
	srv := &fakeServer{}
	r := relay.New(ep, srv, relay.Config{}, nil, nil)
	err := r.Run()
	require.Error(t, err)
	var oerr *ombus.Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, ombus.KindEpochChanged, oerr.Kind)
}

type fatalEndpoint struct{}

func (fatalEndpoint) PollBatch(buf []record.Record, max int) (int, error) {
	return 0, ombus.NewError(ombus.KindEpochChanged, 0)
}

func TestRelayStatsRecordLoop(t *testing.T) {
	ep := &fakeEndpoint{batches: [][]record.Record{records(1, 2)}}
	srv := &fakeServer{}
	var stop atomix.Bool
	ep.onDone = func() { stop.StoreRelease(true) }

	stats := relay.NewStats(nil)
	r := relay.New(ep, srv, relay.Config{PollIntervalUs: 1}, &stop, stats)
	require.NoError(t, r.Run())

	require.GreaterOrEqual(t, stats.Loops(), uint64(1))
	require.Equal(t, uint64(2), stats.RecordsSent())
}
