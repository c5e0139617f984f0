// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmring

// BackpressureFunc is invoked at most once per full-ring spin episode, when
// the producer's backpressure loop transitions from spinning to yielding
// (SPEC_FULL.md §4.2 phase 3).
type BackpressureFunc func(ctx any)

// Config configures stream creation. Field names mirror SPEC_FULL.md §6's
// configuration option names, matching the config package's StreamConfig
// that config.Load fills from a file and the environment.
type Config struct {
	// StreamName is the SHM object name, e.g. "/wal-events".
	StreamName string
	// Capacity is the ring's slot count; must be a power of two. Defaults
	// to 4096 when zero.
	Capacity uint32
	// SlotSize is the fixed size of each slot in bytes, including the
	// 24-byte header. Defaults to 256 when zero.
	SlotSize uint32
	// MaxConsumers bounds the consumer tail table. Defaults to 8 when zero.
	MaxConsumers uint32
	// Flags are feature bits (FlagCRC, FlagRejectReorder).
	Flags Flags
	// StalenessNanos, when non-zero, lets the producer's live-tail scan
	// skip a consumer whose last_poll_nanos has aged past this threshold.
	StalenessNanos uint64
	// Backpressure is invoked once per full-ring spin episode; BackpressureCtx
	// is passed through unchanged.
	Backpressure    BackpressureFunc
	BackpressureCtx any
}

func (c *Config) applyDefaults() {
	if c.Capacity == 0 {
		c.Capacity = 4096
	}
	if c.SlotSize == 0 {
		c.SlotSize = 256
	}
	if c.MaxConsumers == 0 {
		c.MaxConsumers = 8
	}
}

// EndpointOptions configures opening a consumer endpoint against an
// existing stream.
type EndpointOptions struct {
	// ZeroCopy, when true, delivers records aliasing the mapped slot
	// directly instead of copying into a per-endpoint buffer.
	ZeroCopy bool
}
