// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/ombus/relay"
	"code.hybscloud.com/ombus/shmring"
	"code.hybscloud.com/ombus/tcpserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveStream         string
	serveConsumerIndex  uint32
	serveBindAddr       string
	servePort           int
	serveMaxClients     int
	serveSendBufSize    int
	servePollIntervalUs int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run a TCP broadcast server fed by the relay off a named stream",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveStream, "stream", "/ombus-demo", "SHM stream name to relay")
	f.Uint32Var(&serveConsumerIndex, "index", 0, "consumer index the relay opens")
	f.StringVar(&serveBindAddr, "bind", "0.0.0.0", "TCP bind address")
	f.IntVar(&servePort, "port", 0, "TCP listen port (0 = ephemeral)")
	f.IntVar(&serveMaxClients, "max-clients", 64, "max concurrent TCP clients")
	f.IntVar(&serveSendBufSize, "send-buf-size", 256*1024, "per-client outbound ring size in bytes")
	f.IntVar(&servePollIntervalUs, "poll-interval-us", 10, "relay empty-poll sleep interval in microseconds")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	ep, err := shmring.Open(serveStream, serveConsumerIndex, shmring.EndpointOptions{})
	if err != nil {
		return fmt.Errorf("serve: open endpoint: %w", err)
	}
	defer ep.Close()

	srv, err := tcpserver.Create(tcpserver.Config{
		BindAddr:    serveBindAddr,
		Port:        servePort,
		MaxClients:  serveMaxClients,
		SendBufSize: serveSendBufSize,
	}, tcpserver.NewStats(nil), log)
	if err != nil {
		return fmt.Errorf("serve: create tcp server: %w", err)
	}

	log.Info("serving", zap.String("stream", serveStream), zap.Stringer("addr", srv.Addr()))

	var stop atomix.Bool
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info("serve stopping")
		stop.StoreRelease(true)
	}()

	r := relay.New(ep, srv, relay.Config{PollIntervalUs: servePollIntervalUs}, &stop, relay.NewStats(nil))
	if err := r.Run(); err != nil {
		_ = srv.Destroy(true)
		return fmt.Errorf("serve: relay: %w", err)
	}
	return srv.Destroy(true)
}
