// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"code.hybscloud.com/ombus/config"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", "")
	require.NoError(t, err)
	require.EqualValues(t, 4096, cfg.Stream.Capacity)
	require.EqualValues(t, 256, cfg.Stream.SlotSize)
	require.EqualValues(t, 8, cfg.Stream.MaxConsumers)
	require.Equal(t, 64, cfg.TCPServer.MaxClients)
	require.Equal(t, 256*1024, cfg.TCPServer.SendBufSize)
	require.Equal(t, 100, cfg.AutoReconnect.RetryBaseMs)
	require.Equal(t, 10, cfg.Relay.PollIntervalUs)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ombus.yaml")
	content := []byte(`
stream:
  stream_name: /ombus-test
  capacity: 1024
tcp_server:
  bind_addr: 127.0.0.1
  port: 9100
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := config.Load(path, "")
	require.NoError(t, err)
	require.Equal(t, "/ombus-test", cfg.Stream.StreamName)
	require.EqualValues(t, 1024, cfg.Stream.Capacity)
	require.Equal(t, "127.0.0.1", cfg.TCPServer.BindAddr)
	require.Equal(t, 9100, cfg.TCPServer.Port)
	// Fields absent from the file still get their §6 default.
	require.EqualValues(t, 256, cfg.Stream.SlotSize)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OMBUS_TCP_SERVER_PORT", "9200")
	cfg, err := config.Load("", "")
	require.NoError(t, err)
	require.Equal(t, 9200, cfg.TCPServer.Port)
}
