// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tcpserver implements the TCP broadcast fan-out (C5, spec.md
// §4.4): a single-threaded, non-blocking-I/O server that accepts many
// clients and fans every published record out to each of them through a
// bounded per-client outbound ring, disconnecting clients that fall behind.
package tcpserver

import (
	"errors"
	"fmt"
	"net"

	"code.hybscloud.com/atomix"
	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/record"
	"code.hybscloud.com/ombus/wire"
	"go.uber.org/zap"
)

// Server is the TCP broadcast fan-out. Every method except Stats and
// RequestClose is meant to be called from a single goroutine (spec.md
// §4.3's scheduling model: "The TCP server is single-threaded"); Create
// wires up the listener and PollIO/Broadcast/BroadcastBatch/Destroy drive
// it from there on.
type Server struct {
	ln      *net.TCPListener
	cfg     Config
	clients map[string]*client
	order   []string // client IDs in accept order, for deterministic iteration
	stats   *Stats
	log     *zap.Logger

	// closing is set by RequestClose, which may be called from a signal
	// handler or shutdown goroutine other than the one driving PollIO; the
	// client table itself has no lock, so this flag is the one piece of
	// per-server state that genuinely crosses goroutines and needs
	// code.hybscloud.com/atomix's ordering guarantees rather than a plain bool.
	closing atomix.Bool
}

// Create binds the listener and returns a Server ready for PollIO. log may
// be nil, in which case a no-op logger is used.
func Create(cfg Config, stats *Stats, log *zap.Logger) (*Server, error) {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if stats == nil {
		stats = NewStats(nil)
	}
	addr := &net.TCPAddr{IP: net.ParseIP(cfg.BindAddr), Port: cfg.Port}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, ombus.WrapError(ombus.KindTCPBind, 0, err)
	}
	return &Server{
		ln: ln, cfg: cfg,
		clients: make(map[string]*client),
		stats:   stats,
		log:     log.With(zap.String("component", "tcpserver"), zap.Stringer("addr", ln.Addr())),
	}, nil
}

// Addr returns the server's bound address (useful when Config.Port is 0).
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Stats returns the server's counters.
func (s *Server) Stats() *Stats { return s.stats }

// PollIO drives one iteration of the server's reactor: it accepts at most
// one pending connection (waiting at most about a millisecond when none is
// pending, see immediateDeadline), then flushes every client's
// outbox, disconnecting any client marked dropped or that errors out.
func (s *Server) PollIO() error {
	if s.closing.LoadAcquire() {
		return nil
	}
	if err := s.acceptOnce(); err != nil {
		return err
	}
	for _, id := range s.order {
		c, ok := s.clients[id]
		if !ok {
			continue
		}
		// Flush even a client already marked dropped: Broadcast/BroadcastBatch
		// set dropped the moment the outbox overflows, after enqueueing a
		// best-effort slow-consumer warning frame behind whatever good frames
		// were already queued — all of that still needs to reach the socket
		// before reap() closes it (spec.md scenario 5).
		n, err := c.flush()
		if n > 0 {
			s.stats.frameSent(n)
		}
		if err != nil {
			s.log.Debug("client write failed, disconnecting",
				zap.String("client_id", c.id), zap.Error(err))
			c.dropped = true
		}
	}
	s.reap()
	return nil
}

func (s *Server) acceptOnce() error {
	if err := s.ln.SetDeadline(immediateDeadline()); err != nil {
		return ombus.WrapError(ombus.KindTCPBind, 0, err)
	}
	conn, err := s.ln.AcceptTCP()
	if err != nil {
		if isTimeout(err) {
			return nil
		}
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return ombus.WrapError(ombus.KindTCPBind, 0, err)
	}
	if len(s.clients) >= s.cfg.MaxClients {
		s.log.Warn("rejecting connection: at max_clients", zap.Int("max_clients", s.cfg.MaxClients))
		_ = conn.Close()
		return nil
	}
	c := newClient(conn, s.cfg.SendBufSize)
	s.clients[c.id] = c
	s.order = append(s.order, c.id)
	s.stats.clientConnected()
	s.log.Debug("client connected", zap.String("client_id", c.id), zap.Stringer("remote", conn.RemoteAddr()))
	return nil
}

// reap removes clients marked dropped, closing their sockets and recording
// a slow_client_drops increment for each one dropped because its outbox
// overflowed (spec.md §4.4); socket-error drops only count as disconnects.
func (s *Server) reap() {
	kept := s.order[:0]
	for _, id := range s.order {
		c := s.clients[id]
		if !c.dropped {
			kept = append(kept, id)
			continue
		}
		_ = c.conn.Close()
		delete(s.clients, id)
		s.stats.clientDisconnected()
		if c.slow {
			s.stats.slowClientDropped()
		}
		s.log.Debug("client dropped", zap.String("client_id", id), zap.Bool("slow", c.slow))
	}
	s.order = kept
}

// Broadcast encodes one record and enqueues it into every connected
// client's outbox (spec.md §4.4). A client whose outbox cannot fit the
// frame gets a best-effort slow-consumer warning and is marked for
// disconnection; Broadcast itself never blocks or returns an error for an
// individual slow client.
func (s *Server) Broadcast(seq uint64, typ uint8, payload []byte) error {
	if len(payload) > 0xFFFF {
		return ombus.NewError(ombus.KindRecordTooLarge, seq)
	}
	frame := make([]byte, wire.HeaderLen+len(payload))
	wire.Header{Type: typ, PayloadLen: uint16(len(payload)), Seq: seq}.Encode(frame)
	copy(frame[wire.HeaderLen:], payload)

	for _, id := range s.order {
		c := s.clients[id]
		if c.dropped {
			continue
		}
		if !c.enqueueFrame(frame) {
			c.enqueueWarning(seq)
			c.dropped = true
			c.slow = true
		}
	}
	return nil
}

// BroadcastBatch is semantically equivalent to calling Broadcast once per
// record, but builds one encoded buffer per client and enqueues it with a
// single ring write (spec.md §4.4: "must be implementable as a single
// outbound write per client").
func (s *Server) BroadcastBatch(records []record.Record) error {
	total := 0
	for _, r := range records {
		if len(r.Payload) > 0xFFFF {
			return ombus.NewError(ombus.KindRecordTooLarge, r.Seq)
		}
		total += wire.HeaderLen + len(r.Payload)
	}
	buf := make([]byte, 0, total)
	for _, r := range records {
		var hdr [wire.HeaderLen]byte
		wire.Header{Type: r.Type, PayloadLen: uint16(len(r.Payload)), Seq: r.Seq}.Encode(hdr[:])
		buf = append(buf, hdr[:]...)
		buf = append(buf, r.Payload...)
	}

	var lastSeq uint64
	if len(records) > 0 {
		lastSeq = records[len(records)-1].Seq
	}
	for _, id := range s.order {
		c := s.clients[id]
		if c.dropped {
			continue
		}
		if !c.enqueueFrame(buf) {
			c.enqueueWarning(lastSeq)
			c.dropped = true
			c.slow = true
		}
	}
	return nil
}

// RequestClose signals the server to stop accepting and flushing on its
// next PollIO call. Unlike the other methods, this one is safe to call
// from any goroutine.
func (s *Server) RequestClose() { s.closing.StoreRelease(true) }

// Destroy closes the listener and every client connection. When drain is
// true, it first calls PollIO once more to give buffered writes a chance
// to reach their sockets, mirroring the teacher's Drainer.Drain() hint
// before a final teardown.
func (s *Server) Destroy(drain bool) error {
	if drain {
		_ = s.PollIO()
	}
	for _, id := range s.order {
		_ = s.clients[id].conn.Close()
	}
	s.clients = nil
	s.order = nil
	if err := s.ln.Close(); err != nil {
		return fmt.Errorf("tcpserver: close listener: %w", err)
	}
	return nil
}
