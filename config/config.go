// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the stream/endpoint/TCP-server/TCP-client/
// auto-reconnect/relay configuration recognized by spec.md §6, the way
// go-arcade/arcade's pkg/conf builds its viper-backed config layer: a
// struct tree unmarshaled from a config file plus environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// StreamConfig mirrors spec.md §6's Stream configuration options.
type StreamConfig struct {
	StreamName     string `mapstructure:"stream_name"`
	Capacity       uint32 `mapstructure:"capacity"`
	SlotSize       uint32 `mapstructure:"slot_size"`
	MaxConsumers   uint32 `mapstructure:"max_consumers"`
	CRC            bool   `mapstructure:"crc"`
	RejectReorder  bool   `mapstructure:"reject_reorder"`
	StalenessNanos uint64 `mapstructure:"staleness_nanos"`
}

// EndpointConfig mirrors spec.md §6's Endpoint configuration options.
type EndpointConfig struct {
	StreamName    string `mapstructure:"stream_name"`
	ConsumerIndex uint32 `mapstructure:"consumer_index"`
	ZeroCopy      bool   `mapstructure:"zero_copy"`
}

// TCPServerConfig mirrors spec.md §6's TCP server configuration options.
type TCPServerConfig struct {
	BindAddr    string `mapstructure:"bind_addr"`
	Port        int    `mapstructure:"port"`
	MaxClients  int    `mapstructure:"max_clients"`
	SendBufSize int    `mapstructure:"send_buf_size"`
}

// TCPClientConfig mirrors spec.md §6's TCP client configuration options.
type TCPClientConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	RecvBufSize   int           `mapstructure:"recv_buf_size"`
	RejectReorder bool          `mapstructure:"reject_reorder"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
}

// AutoReconnectConfig mirrors spec.md §6's auto-reconnect client
// configuration options (base client config plus retry bookkeeping).
type AutoReconnectConfig struct {
	TCPClientConfig `mapstructure:",squash"`
	MaxRetries      int `mapstructure:"max_retries"`
	RetryBaseMs     int `mapstructure:"retry_base_ms"`
	RetryMaxMs      int `mapstructure:"retry_max_ms"`
}

// RelayConfig mirrors spec.md §6's Relay configuration options. The
// endpoint/server/stop-flag/stats references themselves are wired up by the
// caller (cmd/ombus); only the scalar poll interval is file/env-configurable.
type RelayConfig struct {
	PollIntervalUs int `mapstructure:"poll_interval_us"`
}

// Config is the top-level tree unmarshaled from the config file, one
// section per component, per SPEC_FULL.md's domain-stack wiring table.
type Config struct {
	Stream        StreamConfig        `mapstructure:"stream"`
	Endpoint      EndpointConfig      `mapstructure:"endpoint"`
	TCPServer     TCPServerConfig     `mapstructure:"tcp_server"`
	TCPClient     TCPClientConfig     `mapstructure:"tcp_client"`
	AutoReconnect AutoReconnectConfig `mapstructure:"auto_reconnect"`
	Relay         RelayConfig         `mapstructure:"relay"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stream.capacity", 4096)
	v.SetDefault("stream.slot_size", 256)
	v.SetDefault("stream.max_consumers", 8)
	v.SetDefault("tcp_server.max_clients", 64)
	v.SetDefault("tcp_server.send_buf_size", 256*1024)
	v.SetDefault("tcp_client.recv_buf_size", 256*1024)
	v.SetDefault("auto_reconnect.retry_base_ms", 100)
	v.SetDefault("auto_reconnect.retry_max_ms", 5000)
	v.SetDefault("relay.poll_interval_us", 10)
}

// Load reads configuration from path (if non-empty) plus environment
// variables (OMBUS_ prefix, nested keys joined with "_"), applying the §6
// defaults for any field left unset. envFile, if non-empty, is loaded into
// the process environment first via godotenv, the way
// AlephTX-aleph-tx/feeder bootstraps its own environment.
func Load(path string, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("ombus")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// AutomaticEnv only overrides keys viper already knows, so every key
	// without a default is bound to its environment variable explicitly.
	for _, key := range []string{
		"stream.stream_name", "stream.crc", "stream.reject_reorder", "stream.staleness_nanos",
		"endpoint.stream_name", "endpoint.consumer_index", "endpoint.zero_copy",
		"tcp_server.bind_addr", "tcp_server.port",
		"tcp_client.host", "tcp_client.port", "tcp_client.reject_reorder", "tcp_client.dial_timeout",
		"auto_reconnect.host", "auto_reconnect.port", "auto_reconnect.recv_buf_size",
		"auto_reconnect.reject_reorder", "auto_reconnect.dial_timeout", "auto_reconnect.max_retries",
	} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
