// Copyright 2024 The vmem Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build unix

package backend

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// unixBackend implements Backend over golang.org/x/sys/unix's mmap family.
// Classical POSIX has no separate reserve-without-commit primitive, so
// Reserve is emulated with an anonymous PROT_NONE mapping (spec.md §4.3).
// Flags that vary across the unix family (MAP_NORESERVE, MAP_POPULATE,
// MAP_JIT, and the advise-extras) are supplied per-GOOS by
// backend_flags_*.go; this file holds the logic common to all of them.
type unixBackend struct{}

func newPlatformBackend() Backend { return unixBackend{} }

func (unixBackend) Reserve(req Request) (uintptr, error) {
	flags := unix.MAP_ANON | unix.MAP_PRIVATE | mapNoReserveFlag
	data, err := unix.Mmap(-1, 0, int(req.Length), unix.PROT_NONE, flags)
	if err != nil {
		return 0, fmt.Errorf("mmap(PROT_NONE reserve): %w", err)
	}
	return uintptr(unsafe.Pointer(&data[0])), nil
}

func (unixBackend) Commit(base, length uintptr, req Request) error {
	prot := protFlags(req.Protect)
	flags := unix.MAP_FIXED
	fd := -1
	off := int64(0)
	if req.File != nil {
		fd = int(req.File.FD)
		off = req.File.Offset
	} else {
		flags |= unix.MAP_ANON
	}
	if req.Shared {
		flags |= unix.MAP_SHARED
	} else {
		flags |= unix.MAP_PRIVATE
	}
	if req.JIT {
		flags |= mapJITFlag
	}
	if req.Populate {
		flags |= mapPopulateFlag
	}
	if req.NoReserve {
		flags |= mapNoReserveFlag
	}

	if _, err := mmapFixed(base, length, prot, flags, fd, off); err != nil {
		return fmt.Errorf("mmap(MAP_FIXED commit): %w", err)
	}
	if req.Locked {
		if err := unix.Mlock(unsafeSliceAt(base, length)); err != nil {
			return fmt.Errorf("mlock: %w", err)
		}
	}
	return nil
}

// mmapFixed wraps the raw mmap(2) syscall to map exactly at addr, which
// golang.org/x/sys/unix's Mmap helper doesn't expose (it always lets the
// kernel choose the address). Used both to lay a commit on top of a prior
// PROT_NONE reservation and to decommit one back to PROT_NONE.
func mmapFixed(addr, length uintptr, prot, flags, fd int, offset int64) (uintptr, error) {
	r1, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, length,
		uintptr(prot), uintptr(flags), uintptr(fd), uintptr(offset))
	if errno != 0 {
		return 0, errno
	}
	return r1, nil
}

func (b unixBackend) Protect(base, length uintptr, protect uint8) error {
	if err := unix.Mprotect(unsafeSliceAt(base, length), protFlags(protect)); err != nil {
		return fmt.Errorf("mprotect: %w", err)
	}
	return nil
}

func (b unixBackend) Decommit(base, length uintptr) error {
	// Re-map as PROT_NONE anonymous at the same address, matching
	// Reserve's emulation; also issue MADV_DONTNEED so the kernel drops
	// any resident pages immediately rather than on next reclaim.
	flags := unix.MAP_FIXED | unix.MAP_ANON | unix.MAP_PRIVATE | mapNoReserveFlag
	if _, err := mmapFixed(base, length, unix.PROT_NONE, flags, -1, 0); err != nil {
		return fmt.Errorf("mmap(decommit): %w", err)
	}
	_ = unix.Madvise(unsafeSliceAt(base, length), unix.MADV_DONTNEED)
	return nil
}

func (b unixBackend) Release(base, length uintptr) error {
	// unix.Munmap insists the slice's data and cap match a prior Mmap
	// exactly, keyed by the original allocation's bounds; it rejects any
	// sub-range a SplitOff produced. Go straight to the syscall instead,
	// same as mmapFixed, since munmap(2) itself only requires a
	// page-aligned address and length.
	if err := munmapRaw(base, length); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

func munmapRaw(addr, length uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, length, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (b unixBackend) Flush(base, length uintptr, sync bool) error {
	mode := unix.MS_ASYNC
	if sync {
		mode = unix.MS_SYNC
	}
	if err := unix.Msync(unsafeSliceAt(base, length), mode); err != nil {
		return fmt.Errorf("msync: %w", err)
	}
	return nil
}

func (b unixBackend) Lock(base, length uintptr) error {
	if err := unix.Mlock(unsafeSliceAt(base, length)); err != nil {
		return fmt.Errorf("mlock: %w", err)
	}
	return nil
}

func (b unixBackend) Unlock(base, length uintptr) error {
	if err := unix.Munlock(unsafeSliceAt(base, length)); err != nil {
		return fmt.Errorf("munlock: %w", err)
	}
	return nil
}

func (b unixBackend) Advise(base, length uintptr, advice Advice) error {
	adv, ok := baseAdviceFlag(advice)
	if !ok {
		adv, ok = adviseExtra(advice)
	}
	if !ok {
		// Documented no-op for advice this platform doesn't support.
		return nil
	}
	if err := unix.Madvise(unsafeSliceAt(base, length), adv); err != nil {
		return fmt.Errorf("madvise: %w", err)
	}
	return nil
}

// baseAdviceFlag handles the advice kinds every unix backend in this
// module supports identically (they share the same MADV_* values across
// Linux and the BSD family, including Darwin).
func baseAdviceFlag(advice Advice) (int, bool) {
	switch advice {
	case AdviceSequential:
		return unix.MADV_SEQUENTIAL, true
	case AdviceRandom:
		return unix.MADV_RANDOM, true
	case AdviceWillNeed:
		return unix.MADV_WILLNEED, true
	case AdviceDontNeed:
		return unix.MADV_DONTNEED, true
	default:
		return 0, false
	}
}

func protFlags(p uint8) int {
	prot := unix.PROT_NONE
	if p&1 != 0 {
		prot |= unix.PROT_READ
	}
	if p&2 != 0 {
		prot |= unix.PROT_WRITE
	}
	if p&4 != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}

func unsafeSliceAt(base, length uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), int(length))
}
