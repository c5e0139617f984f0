// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ombus provides the shared error taxonomy for the ombus event bus:
// a single-producer/multi-consumer shared-memory ring
// ([code.hybscloud.com/ombus/shmring]) and a TCP broadcast fan-out
// ([code.hybscloud.com/ombus/tcpserver], [code.hybscloud.com/ombus/tcpclient])
// distributing the same ordered record stream, plus a relay
// ([code.hybscloud.com/ombus/relay]) that bridges the two.
//
// # Quick start
//
// Producer side (single process):
//
//	stream, _ := shmring.Create(shmring.Config{
//		StreamName:   "/wal-events",
//		Capacity:     4096,
//		SlotSize:     256,
//		MaxConsumers: 8,
//		Flags:        shmring.FlagCRC,
//	})
//	defer stream.Destroy()
//	stream.Publish(seq, typ, payload)
//
// Consumer side (any process):
//
//	ep, _ := shmring.Open("/wal-events", 0, shmring.EndpointOptions{})
//	defer ep.Close()
//	var rec record.Record
//	switch err := ep.Poll(&rec); {
//	case err == nil:
//		// use rec
//	case ombus.IsWouldBlock(err):
//		// retry later
//	}
//
// See SPEC_FULL.md in the repository root for the full component map and
// DESIGN.md for how each package is grounded.
package ombus
