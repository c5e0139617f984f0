// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.hybscloud.com/ombus/internal/seqspin"
	"code.hybscloud.com/ombus/record"
	"code.hybscloud.com/ombus/shmring"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	produceStream       string
	produceCapacity     uint32
	produceSlotSize     uint32
	produceMaxConsumers uint32
	produceCRC          bool
	produceRejectReord  bool
	produceIntervalMs   int
	produceCount        int
	produceReplayFile   string
)

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "drive a demo producer publishing synthetic or file-replayed records onto a stream",
	RunE:  runProduce,
}

func init() {
	f := produceCmd.Flags()
	f.StringVar(&produceStream, "stream", "/ombus-demo", "SHM stream name")
	f.Uint32Var(&produceCapacity, "capacity", 4096, "ring capacity (power of two)")
	f.Uint32Var(&produceSlotSize, "slot-size", 256, "slot size in bytes")
	f.Uint32Var(&produceMaxConsumers, "max-consumers", 8, "max consumer count")
	f.BoolVar(&produceCRC, "crc", true, "enable CRC-32C payload checksums")
	f.BoolVar(&produceRejectReord, "reject-reorder", false, "reject reordered sequences")
	f.IntVar(&produceIntervalMs, "interval-ms", 1000, "publish interval in milliseconds")
	f.IntVar(&produceCount, "count", 0, "number of records to publish before exiting (0 = unbounded, or until replay-file is exhausted)")
	f.StringVar(&produceReplayFile, "replay-file", "", "replay one payload per line from this file instead of generating synthetic records")
}

func runProduce(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	var flags shmring.Flags
	if produceCRC {
		flags |= shmring.FlagCRC
	}
	if produceRejectReord {
		flags |= shmring.FlagRejectReorder
	}

	s, err := shmring.Create(shmring.Config{
		StreamName:   produceStream,
		Capacity:     produceCapacity,
		SlotSize:     produceSlotSize,
		MaxConsumers: produceMaxConsumers,
		Flags:        flags,
	})
	if err != nil {
		return fmt.Errorf("produce: create stream: %w", err)
	}
	defer s.Destroy()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(produceIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	// nextPayload reports (payload, true) for a record ready to publish this
	// tick, or (nil, false) to skip this tick without stopping the producer
	// (synthetic mode never skips; replay mode skips while its queue is
	// momentarily empty but the reader goroutine hasn't finished yet).
	// exhausted becomes true only once the replay file is fully drained.
	var nextPayload func() (payload []byte, ready bool)
	var exhausted func() bool
	if produceReplayFile != "" {
		fn, done, err := startReplayReader(produceReplayFile)
		if err != nil {
			return fmt.Errorf("produce: replay file: %w", err)
		}
		nextPayload = fn
		exhausted = done
	} else {
		nextPayload = func() ([]byte, bool) { return nil, true }
		exhausted = func() bool { return false }
	}

	log.Info("producer started", zap.String("stream", produceStream), zap.String("replay_file", produceReplayFile))
	var seq uint64
	for {
		select {
		case <-sigc:
			log.Info("producer stopping", zap.Uint64("published", s.Published()))
			return nil
		case <-ticker.C:
			payload, ready := nextPayload()
			if !ready {
				if exhausted() {
					log.Info("producer exhausted replay file, stopping", zap.Uint64("published", s.Published()))
					return nil
				}
				continue
			}
			seq++
			if payload == nil {
				payload = []byte(fmt.Sprintf("demo-record-%d", seq))
			}
			if err := s.Publish(seq, 0, payload); err != nil {
				return fmt.Errorf("produce: publish: %w", err)
			}
			log.Debug("published", zap.Uint64("seq", seq))
			if produceCount > 0 && int(seq) >= produceCount {
				log.Info("producer reached count, stopping", zap.Int("count", produceCount))
				return nil
			}
		}
	}
}

// startReplayReader spawns a background goroutine that decodes one payload
// per line of path and hands each to the publishing loop through a
// seqspin.SPSC queue, so a slow or bursty file read never stalls the
// ticker-paced publish cadence above. The returned pull function reports
// (payload, true) for a delivered record or (nil, false) when the queue is
// momentarily empty; the returned exhausted function becomes true once the
// reader goroutine has finished and the queue has been fully drained.
func startReplayReader(path string) (pull func() ([]byte, bool), exhausted func() bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	const queueCapacity = 256
	q := seqspin.NewSPSC[record.Record](queueCapacity)
	done := make(chan struct{})

	go func() {
		defer f.Close()
		defer close(done)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			rec := record.Record{Type: 0, Payload: append([]byte{}, scanner.Bytes()...)}
			for q.Enqueue(rec) != nil {
				time.Sleep(time.Millisecond)
			}
		}
	}()

	pull = func() ([]byte, bool) {
		rec, err := q.Dequeue()
		if err != nil {
			return nil, false
		}
		return rec.Payload, true
	}
	exhausted = func() bool {
		select {
		case <-done:
			return q.Len() == 0
		default:
			return false
		}
	}
	return pull, exhausted, nil
}
