// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmring

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"
)

// mapping owns an mmap'd SHM file, grounded on
// AlephTX-aleph-tx/feeder/shm/seqlock.go's mmap-then-cast-via-unsafe.Pointer
// technique (stdlib syscall, not golang.org/x/sys/unix: the pack shows no
// example reaching for x/sys/unix for a bare mmap/munmap pair, and syscall
// is sufficient and dependency-free for this one primitive).
type mapping struct {
	file *os.File
	data []byte
}

// shmPath resolves a stream name to its backing file path. Stream names
// follow the platform shared-memory naming convention (a leading "/" and a
// short identifier); ombus maps that straight onto /dev/shm, the same
// location AlephTX-aleph-tx's feeder uses for its ring buffers.
func shmPath(name string) string {
	if len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	return "/dev/shm/" + name
}

// createMapping opens (creating if absent) the backing file for a fresh
// producer and ensures it is exactly size bytes, then maps it.
//
// Critically, a restarting producer calling Create against a name whose
// file already exists (the prior producer crashed or exited without
// Destroy) must NOT unlink-and-recreate the path: doing so would allocate
// a new inode, leaving any consumer that still holds the old mapping open
// unable to ever observe the restart. Instead the existing inode is opened
// and, if its size already matches, reused in place; Stream.Create then
// re-stamps every header field (including producer_epoch) through that
// same mapping, so an existing consumer's next atomic load sees the bump.
// Grounded on AlephTX-aleph-tx/feeder/shm/seqlock.go's same assumption
// that a ring's identity is the inode, not the path.
func createMapping(name string, size int64) (*mapping, error) {
	path := shmPath(name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("shmring: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmring: stat: %w", err)
	}
	if fi.Size() != size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("shmring: truncate: %w", err)
		}
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmring: mmap: %w", err)
	}
	return &mapping{file: f, data: data}, nil
}

func openMapping(name string) (*mapping, error) {
	path := shmPath(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("shmring: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmring: stat: %w", err)
	}
	size := fi.Size()
	if size < headerPageSize {
		f.Close()
		return nil, fmt.Errorf("shmring: %s too small to be a stream", path)
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmring: mmap: %w", err)
	}
	return &mapping{file: f, data: data}, nil
}

func (m *mapping) close() error {
	err := syscall.Munmap(m.data)
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// unlink removes the backing file; it does not unmap.
func unlinkStream(name string) error {
	return os.Remove(shmPath(name))
}

// --- raw cross-process atomics over the mapped byte slice ---
//
// These operate on memory that may be observed by another OS process
// mapping the same file, so they use sync/atomic directly on pointers into
// m.data rather than code.hybscloud.com/atomix (see package doc).

func (m *mapping) ptrU64(off int64) *uint64 {
	return (*uint64)(unsafe.Pointer(&m.data[off]))
}

func (m *mapping) ptrU32(off int64) *uint32 {
	return (*uint32)(unsafe.Pointer(&m.data[off]))
}

func (m *mapping) loadU64(off int64) uint64 {
	return atomic.LoadUint64(m.ptrU64(off))
}

func (m *mapping) storeU64(off int64, v uint64) {
	atomic.StoreUint64(m.ptrU64(off), v)
}

func (m *mapping) addU64(off int64, delta uint64) uint64 {
	return atomic.AddUint64(m.ptrU64(off), delta)
}

func (m *mapping) casU64(off int64, old, new uint64) bool {
	return atomic.CompareAndSwapUint64(m.ptrU64(off), old, new)
}

func (m *mapping) loadU32(off int64) uint32 {
	return atomic.LoadUint32(m.ptrU32(off))
}

func (m *mapping) storeU32(off int64, v uint32) {
	atomic.StoreUint32(m.ptrU32(off), v)
}
