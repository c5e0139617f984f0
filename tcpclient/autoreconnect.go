// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpclient

import (
	"errors"
	"time"

	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/record"
	"github.com/agilira/go-timecache"
)

// clock is a cached monotonic clock for reconnect deadline comparisons
// (SPEC_FULL.md's domain stack: "tcpclient reconnect deadlines"). A
// millisecond resolution matches agilira-lethe's own
// NewWithResolution(time.Millisecond) call and is ample for backoff
// granularity measured in whole milliseconds.
var clock = timecache.NewWithResolution(time.Millisecond)

// AutoReconnect wraps a Client with exponential-backoff reconnection
// (spec.md §4.5). Poll is not reentrant.
type AutoReconnect struct {
	cfg AutoReconnectConfig

	inner   *Client
	backoff time.Duration
	retries int // remaining attempts; meaningless when cfg.MaxRetries == 0
	nextAt  time.Time

	lastWALSeq uint64
	dead       bool
}

// NewAutoReconnect performs the mandatory initial connect; a failure here
// is surfaced to the caller rather than entering backoff (spec.md §4.5:
// "On creation, perform an initial connect (mandatory; failure is
// surfaced)").
func NewAutoReconnect(cfg AutoReconnectConfig) (*AutoReconnect, error) {
	cfg.applyDefaults()
	c, err := Connect(cfg.Host, cfg.Port, cfg.Client)
	if err != nil {
		return nil, err
	}
	return &AutoReconnect{
		cfg:     cfg,
		inner:   c,
		backoff: cfg.InitialBackoff,
		retries: cfg.MaxRetries,
	}, nil
}

// LastWALSeq returns the wal_seq of the most recently delivered record (or
// slow-warning), surviving reconnects.
func (a *AutoReconnect) LastWALSeq() uint64 { return a.lastWALSeq }

// Close closes the current inner connection, if any.
func (a *AutoReconnect) Close() error {
	if a.inner != nil {
		return a.inner.Close()
	}
	return nil
}

// Poll surfaces the inner client's result when connected, folding
// disconnection into a transparent reconnect cycle (spec.md §4.5).
func (a *AutoReconnect) Poll(rec *record.Record) error {
	if a.dead {
		return ombus.NewError(ombus.KindTCPDisconnected, a.lastWALSeq)
	}
	if a.inner != nil {
		return a.pollConnected(rec)
	}
	return a.pollDisconnected(rec)
}

func (a *AutoReconnect) pollConnected(rec *record.Record) error {
	err := a.inner.Poll(rec)
	if err == nil {
		a.lastWALSeq = a.inner.LastWALSeq()
		return nil
	}
	if ombus.IsWouldBlock(err) {
		return err
	}
	var oerr *ombus.Error
	if errors.As(err, &oerr) {
		switch oerr.Kind {
		case ombus.KindGap, ombus.KindReorder, ombus.KindSlowWarning:
			a.lastWALSeq = a.inner.LastWALSeq()
			return err
		case ombus.KindTCPDisconnected, ombus.KindTCPProtocol:
			a.lastWALSeq = a.inner.LastWALSeq()
			_ = a.inner.Close()
			a.inner = nil
			a.nextAt = clock.CachedTime().Add(a.backoff)
			return ombus.ErrWouldBlock
		}
	}
	return err
}

func (a *AutoReconnect) pollDisconnected(rec *record.Record) error {
	if clock.CachedTime().Before(a.nextAt) {
		return ombus.ErrWouldBlock
	}
	c, err := Connect(a.cfg.Host, a.cfg.Port, a.cfg.Client)
	if err != nil {
		a.backoff *= 2
		if a.backoff > a.cfg.MaxBackoff {
			a.backoff = a.cfg.MaxBackoff
		}
		if a.cfg.MaxRetries > 0 {
			a.retries--
			if a.retries <= 0 {
				a.dead = true
				return ombus.NewError(ombus.KindTCPDisconnected, a.lastWALSeq)
			}
		}
		a.nextAt = clock.CachedTime().Add(a.backoff)
		return ombus.ErrWouldBlock
	}

	a.inner = c
	a.backoff = a.cfg.InitialBackoff
	a.retries = a.cfg.MaxRetries
	// "On success, reset backoff ... and continue": fall straight into a
	// poll on the new connection instead of waiting for the caller's next
	// cycle to notice it reconnected.
	return a.pollConnected(rec)
}
