// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

import "time"

// Config configures a Relay (spec.md §4.6, §6). It holds only the optional
// empty-poll sleep interval; the endpoint, server, stop flag and stats are
// passed to New directly rather than named here.
type Config struct {
	// PollIntervalUs is the sleep interval once idle past the spin
	// threshold, in microseconds. Defaults to 10us.
	PollIntervalUs int
}

func (c *Config) applyDefaults() {
	if c.PollIntervalUs == 0 {
		c.PollIntervalUs = 10
	}
}

func (c Config) pollInterval() time.Duration {
	return time.Duration(c.PollIntervalUs) * time.Microsecond
}

const (
	minBurst     = 16
	maxBurst     = 256
	startBurst   = 64
	emptySpinCap = 100
)
