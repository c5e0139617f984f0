// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package relay implements the batched SHM-to-TCP forwarding loop (C7,
// spec.md §4.6): a foreground loop that drains one SHM endpoint in bursts
// and broadcasts each burst over one TCP server, with adaptive burst sizing
// and a busy-spin-then-sleep idle strategy grounded on the same
// code.hybscloud.com/spin idiom the SHM producer's backpressure loop uses.
package relay

import (
	"time"

	"code.hybscloud.com/atomix"
	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/record"
	"code.hybscloud.com/ombus/shmring"
	"code.hybscloud.com/ombus/tcpserver"
	"code.hybscloud.com/spin"
)

// Endpoint is the subset of *shmring.Endpoint the relay drives; satisfied by
// *shmring.Endpoint directly, and narrowed to an interface so tests can
// supply a fake without opening a real SHM mapping.
type Endpoint interface {
	PollBatch(buf []record.Record, max int) (int, error)
}

// Server is the subset of *tcpserver.Server the relay drives.
type Server interface {
	BroadcastBatch(records []record.Record) error
	PollIO() error
}

var _ Endpoint = (*shmring.Endpoint)(nil)
var _ Server = (*tcpserver.Server)(nil)

// nowNanos is the clock the relay uses for per-loop latency accounting.
// shmring keeps its own microsecond-resolution timecache, but the relay
// measures whole-loop wall-clock rather than timestamping header fields, so
// it reads a fresh time.Now() on every call instead of a cached value — see
// DESIGN.md for why this one caller does not share shmring's cache.
func nowNanos() int64 { return time.Now().UnixNano() }

// Relay drives one endpoint-to-server forwarding loop. Run is meant to be
// called from the single dedicated goroutine spec.md §5 assigns per
// relayed stream; it is not safe to call Run concurrently on the same Relay.
type Relay struct {
	ep    Endpoint
	srv   Server
	cfg   Config
	stats *Stats
	stop  *atomix.Bool

	burst int
	buf   []record.Record
}

// New builds a Relay. stop may be nil, meaning the relay only stops when
// Run's loop body itself returns (an SHM error). stats may be nil to skip
// statistics collection entirely.
func New(ep Endpoint, srv Server, cfg Config, stop *atomix.Bool, stats *Stats) *Relay {
	cfg.applyDefaults()
	return &Relay{
		ep: ep, srv: srv, cfg: cfg, stats: stats, stop: stop,
		burst: startBurst,
		buf:   make([]record.Record, maxBurst),
	}
}

// Run executes the relay loop until the stop flag is set or the endpoint
// returns an error that ombus.Recoverable does not accept (epoch-changed,
// crc-mismatch). A gap does not stop the loop: PollBatch delivers the
// gapped record inside the batch and the relay broadcasts it like any
// other. Run returns nil on a clean stop, or the fatal error otherwise — the
// relay never retries; the operator restarts it (spec.md §4.6 point 4).
func (r *Relay) Run() error {
	sw := spin.Wait{}
	emptySpins := 0

	for {
		if r.stop != nil && r.stop.LoadAcquire() {
			_ = r.srv.PollIO()
			return nil
		}

		loopStart := nowNanos()
		n, err := r.ep.PollBatch(r.buf, r.burst)

		if err != nil && !ombus.IsWouldBlock(err) && !ombus.Recoverable(err) {
			return err
		}

		if n > 0 {
			if broadcastErr := r.srv.BroadcastBatch(r.buf[:n]); broadcastErr != nil {
				return broadcastErr
			}
			if ioErr := r.srv.PollIO(); ioErr != nil {
				return ioErr
			}
			r.adjustBurst(n)
			emptySpins = 0
		} else {
			if emptySpins == 0 {
				if ioErr := r.srv.PollIO(); ioErr != nil {
					return ioErr
				}
			}
			emptySpins++
			if emptySpins > emptySpinCap {
				time.Sleep(r.cfg.pollInterval())
			} else {
				sw.Once()
			}
		}

		if r.stats != nil {
			r.stats.recordLoop(uint64(nowNanos()-loopStart), n, r.burst)
		}
	}
}

// adjustBurst implements spec.md §4.6 point 2's adaptive sizing: double the
// limit when the batch filled it (there may be more waiting), halve it when
// the batch was less than a quarter of the limit (most of the burst was
// wasted capacity).
func (r *Relay) adjustBurst(n int) {
	switch {
	case n >= r.burst && r.burst < maxBurst:
		r.burst *= 2
		if r.burst > maxBurst {
			r.burst = maxBurst
		}
	case n < r.burst/4 && r.burst > minBurst:
		r.burst /= 2
		if r.burst < minBurst {
			r.burst = minBurst
		}
	}
}
