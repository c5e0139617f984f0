// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpserver

// Config configures a Server (spec.md §4.4, §6). Field names mirror
// SPEC_FULL.md §6's configuration option names.
type Config struct {
	// BindAddr is the listen address; empty means all interfaces.
	BindAddr string
	// Port is the listen port; 0 picks an ephemeral port.
	Port int
	// MaxClients bounds concurrent connections. Defaults to 64 when zero.
	MaxClients int
	// SendBufSize is each client's outbound ring capacity in bytes.
	// Defaults to 256 KiB when zero.
	SendBufSize int
}

func (c *Config) applyDefaults() {
	if c.MaxClients == 0 {
		c.MaxClients = 64
	}
	if c.SendBufSize == 0 {
		c.SendBufSize = 256 * 1024
	}
}
