// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	ombus "code.hybscloud.com/ombus"
	"code.hybscloud.com/ombus/record"
	"code.hybscloud.com/ombus/shmring"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	consumeStream    string
	consumeIndex     uint32
	consumeZeroCopy  bool
	consumeCursorOut string
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "poll a local endpoint and print delivered records",
	RunE:  runConsume,
}

func init() {
	f := consumeCmd.Flags()
	f.StringVar(&consumeStream, "stream", "/ombus-demo", "SHM stream name")
	f.Uint32Var(&consumeIndex, "index", 0, "consumer index")
	f.BoolVar(&consumeZeroCopy, "zero-copy", false, "deliver records aliasing the mapped slot")
	f.StringVar(&consumeCursorOut, "cursor", "", "cursor file to persist last_wal_seq to on exit")
}

func runConsume(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	ep, err := shmring.Open(consumeStream, consumeIndex, shmring.EndpointOptions{ZeroCopy: consumeZeroCopy})
	if err != nil {
		return fmt.Errorf("consume: open endpoint: %w", err)
	}
	defer ep.Close()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	log.Info("consumer started", zap.String("stream", consumeStream), zap.Uint32("index", consumeIndex))
	var rec record.Record
	for {
		select {
		case <-sigc:
			return persistCursor(ep.LastWALSeq())
		default:
		}

		err := ep.Poll(&rec)
		switch {
		case err == nil:
			fmt.Printf("seq=%d type=%d len=%d\n", rec.Seq, rec.Type, len(rec.Payload))
		case ombus.IsWouldBlock(err):
			time.Sleep(time.Millisecond)
		case errors.Is(err, ombus.ErrKind(ombus.KindGap)):
			fmt.Printf("GAP at seq=%d\n", rec.Seq)
		case errors.Is(err, ombus.ErrKind(ombus.KindReorder)):
			fmt.Printf("REORDER at seq=%d\n", rec.Seq)
		default:
			log.Error("consumer stopping on fatal error", zap.Error(err))
			return persistCursor(ep.LastWALSeq())
		}
	}
}

func persistCursor(lastWALSeq uint64) error {
	if consumeCursorOut == "" {
		return nil
	}
	if err := shmring.SaveCursor(consumeCursorOut, lastWALSeq); err != nil {
		return fmt.Errorf("consume: save cursor: %w", err)
	}
	return nil
}
