// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpclient

import "time"

// Config configures a Client (spec.md §4.5, §6).
type Config struct {
	// RecvBufSize is the fixed receive/reassembly buffer size. Defaults to
	// 256 KiB when zero.
	RecvBufSize int
	// RejectReorder makes Poll classify a sequence below expectation as
	// KindReorder instead of silently advancing past it.
	RejectReorder bool
	// DialTimeout bounds the initial blocking connect. Defaults to 10s.
	DialTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.RecvBufSize == 0 {
		c.RecvBufSize = 256 * 1024
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
}

// AutoReconnectConfig configures an AutoReconnect wrapper (spec.md §4.5).
type AutoReconnectConfig struct {
	Host   string
	Port   int
	Client Config

	// InitialBackoff is the delay before the first reconnect attempt.
	// Defaults to 100ms.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff. Defaults to 5000ms.
	MaxBackoff time.Duration
	// MaxRetries bounds the number of reconnect attempts; 0 means unlimited.
	MaxRetries int
}

func (c *AutoReconnectConfig) applyDefaults() {
	c.Client.applyDefaults()
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 5000 * time.Millisecond
	}
}
