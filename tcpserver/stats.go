// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpserver

import (
	"code.hybscloud.com/atomix"
	"github.com/prometheus/client_golang/prometheus"
)

// Stats holds the server's monotonic counters (spec.md §4.4) plus their
// Prometheus export. The counters are updated exclusively by the server's
// single I/O thread but may be read concurrently by a metrics scrape
// goroutine, so they use code.hybscloud.com/atomix the same way the teacher
// guards its own cross-goroutine queue bookkeeping.
type Stats struct {
	connectedClients atomix.Int64
	slowClientDrops  atomix.Uint64
	framesSent       atomix.Uint64
	bytesSent        atomix.Uint64

	promConnected prometheus.Gauge
	promDrops     prometheus.Counter
	promFrames    prometheus.Counter
	promBytes     prometheus.Counter
}

// NewStats creates a Stats block and registers its Prometheus collectors
// under reg. Pass a fresh prometheus.NewRegistry() in tests to avoid
// colliding with the default global registry.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		promConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ombus_tcpserver_connected_clients",
			Help: "Number of TCP clients currently connected.",
		}),
		promDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ombus_tcpserver_slow_client_drops_total",
			Help: "Total number of clients disconnected for falling behind.",
		}),
		promFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ombus_tcpserver_frames_sent_total",
			Help: "Total number of flush passes that wrote bytes to a client socket (not individual frames).",
		}),
		promBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ombus_tcpserver_bytes_sent_total",
			Help: "Total number of payload+header bytes written to client sockets.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.promConnected, s.promDrops, s.promFrames, s.promBytes)
	}
	return s
}

func (s *Stats) clientConnected() {
	s.connectedClients.AddAcqRel(1)
	s.promConnected.Inc()
}

func (s *Stats) clientDisconnected() {
	s.connectedClients.AddAcqRel(-1)
	s.promConnected.Dec()
}

func (s *Stats) slowClientDropped() {
	s.slowClientDrops.AddAcqRel(1)
	s.promDrops.Inc()
}

func (s *Stats) frameSent(n int) {
	s.framesSent.AddAcqRel(1)
	s.bytesSent.AddAcqRel(uint64(n))
	s.promFrames.Inc()
	s.promBytes.Add(float64(n))
}

// ConnectedClients returns the current connected-client count.
func (s *Stats) ConnectedClients() int64 { return s.connectedClients.LoadAcquire() }

// SlowClientDrops returns the total number of clients dropped for falling behind.
func (s *Stats) SlowClientDrops() uint64 { return s.slowClientDrops.LoadAcquire() }

// FramesSent returns the number of flush passes that wrote bytes to a
// client socket. It counts one per write call, not one per frame: a pass
// that writes several queued frames at once adds 1.
func (s *Stats) FramesSent() uint64 { return s.framesSent.LoadAcquire() }

// BytesSent returns the total number of bytes written to client sockets.
func (s *Stats) BytesSent() uint64 { return s.bytesSent.LoadAcquire() }
