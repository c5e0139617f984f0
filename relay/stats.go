// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

import (
	"code.hybscloud.com/atomix"
	"github.com/prometheus/client_golang/prometheus"
)

// Stats aggregates relay loop statistics (spec.md §4.6 point 5): a per-loop
// latency histogram, a per-loop batch-size histogram, and running totals.
// Like tcpserver.Stats, the atomix counters are the authoritative
// concurrently-readable state (the relay updates them from its own single
// dedicated thread per spec.md §5, but a caller may read Stats from another
// goroutine at any time); the Prometheus collectors mirror them for
// /metrics scraping (SPEC_FULL.md: "relay.Stats Prometheus export alongside
// the custom histogram").
type Stats struct {
	latency   log2Histogram
	batchSize log2Histogram

	loops        atomix.Uint64
	recordsSent  atomix.Uint64
	emptyPolls   atomix.Uint64
	currentBurst atomix.Uint64

	loopsTotal        prometheus.Counter
	recordsSentTotal  prometheus.Counter
	emptyPollsTotal   prometheus.Counter
	currentBurstGauge prometheus.Gauge
}

// NewStats builds a Stats, registering its collectors against reg (which
// may be nil to skip Prometheus registration entirely).
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		loopsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ombus_relay_loops_total",
			Help: "Total relay loop iterations.",
		}),
		recordsSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ombus_relay_records_sent_total",
			Help: "Total records forwarded from SHM to TCP.",
		}),
		emptyPollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ombus_relay_empty_polls_total",
			Help: "Total relay loop iterations that found no records.",
		}),
		currentBurstGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ombus_relay_current_burst_limit",
			Help: "Current adaptive burst_limit.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.loopsTotal, s.recordsSentTotal, s.emptyPollsTotal, s.currentBurstGauge)
	}
	return s
}

func (s *Stats) recordLoop(latencyNanos uint64, batchSize int, burst int) {
	s.latency.observe(latencyNanos)
	s.batchSize.observe(uint64(batchSize))
	s.loops.AddAcqRel(1)
	s.loopsTotal.Inc()
	s.currentBurst.StoreRelease(uint64(burst))
	s.currentBurstGauge.Set(float64(burst))
	if batchSize > 0 {
		s.recordsSent.AddAcqRel(uint64(batchSize))
		s.recordsSentTotal.Add(float64(batchSize))
	} else {
		s.emptyPolls.AddAcqRel(1)
		s.emptyPollsTotal.Inc()
	}
}

// Loops returns the number of loop iterations executed so far.
func (s *Stats) Loops() uint64 { return s.loops.LoadAcquire() }

// RecordsSent returns the number of records forwarded so far.
func (s *Stats) RecordsSent() uint64 { return s.recordsSent.LoadAcquire() }

// EmptyPolls returns the number of loop iterations that found no records.
func (s *Stats) EmptyPolls() uint64 { return s.emptyPolls.LoadAcquire() }

// CurrentBurstLimit returns the adaptive burst_limit as of the most recent loop.
func (s *Stats) CurrentBurstLimit() uint64 { return s.currentBurst.LoadAcquire() }

// LatencyPercentile returns the first latency bucket (in nanoseconds) whose
// cumulative count reaches centile (0-100).
func (s *Stats) LatencyPercentile(centile float64) uint64 { return s.latency.percentile(centile) }

// BatchSizePercentile returns the first batch-size bucket whose cumulative
// count reaches centile (0-100).
func (s *Stats) BatchSizePercentile(centile float64) uint64 { return s.batchSize.percentile(centile) }

// MeanLatencyNanos returns the mean per-loop latency observed so far.
func (s *Stats) MeanLatencyNanos() float64 { return s.latency.mean() }
